package report

import (
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"

	"github.com/pmo-suite/change-request-service/internal/changerequest"
)

const SheetName = "Change Requests"

var header = []any{
	"ID", "Project", "Type", "Status", "Requested By",
	"Reviewed By", "Reviewed At", "Rejection Reason", "Created At", "Updated At",
}

// WriteChangeRequests renders rows as a single-sheet workbook.
func WriteChangeRequests(w io.Writer, rows []changerequest.ChangeRequest) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return errors.Wrap(err, "rename sheet")
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return errors.Wrap(err, "write header")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "create header style")
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return errors.Wrap(err, "style header")
	}

	for i, cr := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			cr.ID,
			cr.ProjectID,
			string(cr.Type),
			string(cr.Status),
			cr.RequestedBy,
			deref(cr.ReviewedBy),
			formatTime(cr.ReviewedAt),
			deref(cr.RejectionReason),
			cr.CreatedAt.UTC().Format(time.RFC3339),
			cr.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return errors.Wrapf(err, "write row %d", cr.ID)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
