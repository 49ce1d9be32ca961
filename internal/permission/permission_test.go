package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func granted(caps ...Capability) map[Capability]bool {
	out := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		out[c] = true
	}
	return out
}

var allCapabilities = []Capability{
	CreateProject, EditProject, DeleteProject, ApproveProject,
	ManageDepartments, ManageUsers, SubmitChangeRequest, ApproveChangeRequest,
	CreateTask, AssignTask, ViewAllDepartments, ViewReports, ViewAnalytics,
	AccessAdminSettings,
}

func TestFor_MatchesPolicyTable(t *testing.T) {
	reviewerCaps := granted(
		CreateProject, EditProject, ApproveProject, SubmitChangeRequest,
		ApproveChangeRequest, CreateTask, AssignTask, ViewReports, ViewAnalytics,
	)

	cases := []struct {
		role Role
		want map[Capability]bool
	}{
		{RoleAdministrator, granted(allCapabilities...)},
		{RoleMainPMO, granted(allCapabilities...)},
		{RoleSubPMO, reviewerCaps},
		{RoleDepartmentDirector, reviewerCaps},
		{RoleProjectManager, granted(CreateProject, EditProject, SubmitChangeRequest, CreateTask, AssignTask)},
		{RoleExecutive, granted(ApproveProject, ViewAllDepartments, ViewReports, ViewAnalytics)},
		{RoleUser, granted(SubmitChangeRequest)},
		{Role(""), granted()},
		{Role("Intern"), granted()},
	}

	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			set := For(tc.role)
			for _, c := range allCapabilities {
				assert.Equalf(t, tc.want[c], set.Has(c), "capability %s", c)
			}
		})
	}
}

func TestFor_Deterministic(t *testing.T) {
	for _, role := range Roles() {
		assert.Equal(t, For(role), For(role))
	}
}

func TestFor_ReturnsCopy(t *testing.T) {
	set := For(RoleUser)
	set.CanManageUsers = true
	assert.False(t, For(RoleUser).CanManageUsers)
}

func TestSet_Capabilities(t *testing.T) {
	assert.Equal(t, []Capability{SubmitChangeRequest}, For(RoleUser).Capabilities())
	assert.Len(t, For(RoleAdministrator).Capabilities(), len(allCapabilities))
	assert.Empty(t, For("").Capabilities())
	assert.False(t, For(RoleAdministrator).Has(Capability("canLaunchRockets")))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" subpmo ")
	require.NoError(t, err)
	assert.Equal(t, RoleSubPMO, role)

	_, err = ParseRole("Guest")
	assert.Error(t, err)

	assert.True(t, RoleExecutive.Valid())
	assert.False(t, Role("Guest").Valid())
}
