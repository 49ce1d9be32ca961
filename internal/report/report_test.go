package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pmo-suite/change-request-service/internal/changerequest"
)

func TestWriteChangeRequests(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	reviewed := created.Add(2 * time.Hour)
	reviewer := "main-1"
	reason := "insufficient budget detail"

	rows := []changerequest.ChangeRequest{
		{
			ID: 1, ProjectID: 42, Type: changerequest.TypeBudget, Status: changerequest.StatusReturnedToSubPMO,
			RequestedBy: "pm-1", ReviewedBy: &reviewer, ReviewedAt: &reviewed, RejectionReason: &reason,
			CreatedAt: created, UpdatedAt: reviewed,
		},
		{
			ID: 2, ProjectID: 42, Type: changerequest.TypeFaculty, Status: changerequest.StatusPending,
			RequestedBy: "pm-2", CreatedAt: created, UpdatedAt: created,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteChangeRequests(&buf, rows))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Status", got[0][3])
	assert.Equal(t, []string{
		"1", "42", "Budget", "ReturnedToSubPMO", "pm-1",
		"main-1", "2024-03-01T11:30:00Z", "insufficient budget detail",
		"2024-03-01T09:30:00Z", "2024-03-01T11:30:00Z",
	}, got[1])
	assert.Equal(t, "Faculty", got[2][2])
	assert.Equal(t, "", got[2][5])
}

func TestWriteChangeRequests_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChangeRequests(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0], 10)
}
