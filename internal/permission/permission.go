package permission

import (
	"sort"
	"strings"

	"github.com/go-faster/errors"
)

type Role string

const (
	RoleUser               Role = "User"
	RoleProjectManager     Role = "ProjectManager"
	RoleSubPMO             Role = "SubPMO"
	RoleMainPMO            Role = "MainPMO"
	RoleDepartmentDirector Role = "DepartmentDirector"
	RoleExecutive          Role = "Executive"
	RoleAdministrator      Role = "Administrator"
)

var roles = []Role{
	RoleUser,
	RoleProjectManager,
	RoleSubPMO,
	RoleMainPMO,
	RoleDepartmentDirector,
	RoleExecutive,
	RoleAdministrator,
}

// Roles returns every known role in declaration order.
func Roles() []Role {
	return append([]Role(nil), roles...)
}

func (r Role) Valid() bool {
	for _, known := range roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole accepts the canonical role name, ignoring surrounding whitespace and case.
func ParseRole(raw string) (Role, error) {
	raw = strings.TrimSpace(raw)
	for _, known := range roles {
		if strings.EqualFold(raw, string(known)) {
			return known, nil
		}
	}
	return "", errors.Errorf("unknown role %q", raw)
}

type Capability string

const (
	CreateProject        Capability = "canCreateProject"
	EditProject          Capability = "canEditProject"
	DeleteProject        Capability = "canDeleteProject"
	ApproveProject       Capability = "canApproveProject"
	ManageDepartments    Capability = "canManageDepartments"
	ManageUsers          Capability = "canManageUsers"
	SubmitChangeRequest  Capability = "canSubmitChangeRequest"
	ApproveChangeRequest Capability = "canApproveChangeRequest"
	CreateTask           Capability = "canCreateTask"
	AssignTask           Capability = "canAssignTask"
	ViewAllDepartments   Capability = "canViewAllDepartments"
	ViewReports          Capability = "canViewReports"
	ViewAnalytics        Capability = "canViewAnalytics"
	AccessAdminSettings  Capability = "canAccessAdminSettings"
)

// Set is the capability set granted to a role. The zero value grants nothing.
type Set struct {
	CanCreateProject        bool `json:"canCreateProject"`
	CanEditProject          bool `json:"canEditProject"`
	CanDeleteProject        bool `json:"canDeleteProject"`
	CanApproveProject       bool `json:"canApproveProject"`
	CanManageDepartments    bool `json:"canManageDepartments"`
	CanManageUsers          bool `json:"canManageUsers"`
	CanSubmitChangeRequest  bool `json:"canSubmitChangeRequest"`
	CanApproveChangeRequest bool `json:"canApproveChangeRequest"`
	CanCreateTask           bool `json:"canCreateTask"`
	CanAssignTask           bool `json:"canAssignTask"`
	CanViewAllDepartments   bool `json:"canViewAllDepartments"`
	CanViewReports          bool `json:"canViewReports"`
	CanViewAnalytics        bool `json:"canViewAnalytics"`
	CanAccessAdminSettings  bool `json:"canAccessAdminSettings"`
}

func (s Set) flags() map[Capability]bool {
	return map[Capability]bool{
		CreateProject:        s.CanCreateProject,
		EditProject:          s.CanEditProject,
		DeleteProject:        s.CanDeleteProject,
		ApproveProject:       s.CanApproveProject,
		ManageDepartments:    s.CanManageDepartments,
		ManageUsers:          s.CanManageUsers,
		SubmitChangeRequest:  s.CanSubmitChangeRequest,
		ApproveChangeRequest: s.CanApproveChangeRequest,
		CreateTask:           s.CanCreateTask,
		AssignTask:           s.CanAssignTask,
		ViewAllDepartments:   s.CanViewAllDepartments,
		ViewReports:          s.CanViewReports,
		ViewAnalytics:        s.CanViewAnalytics,
		AccessAdminSettings:  s.CanAccessAdminSettings,
	}
}

// Has reports whether the capability is granted. Unknown capabilities are never granted.
func (s Set) Has(c Capability) bool {
	return s.flags()[c]
}

// Capabilities lists the granted capabilities in lexical order.
func (s Set) Capabilities() []Capability {
	var out []Capability
	for c, ok := range s.flags() {
		if ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var everything = Set{
	CanCreateProject:        true,
	CanEditProject:          true,
	CanDeleteProject:        true,
	CanApproveProject:       true,
	CanManageDepartments:    true,
	CanManageUsers:          true,
	CanSubmitChangeRequest:  true,
	CanApproveChangeRequest: true,
	CanCreateTask:           true,
	CanAssignTask:           true,
	CanViewAllDepartments:   true,
	CanViewReports:          true,
	CanViewAnalytics:        true,
	CanAccessAdminSettings:  true,
}

var reviewer = Set{
	CanCreateProject:        true,
	CanEditProject:          true,
	CanApproveProject:       true,
	CanSubmitChangeRequest:  true,
	CanApproveChangeRequest: true,
	CanCreateTask:           true,
	CanAssignTask:           true,
	CanViewReports:          true,
	CanViewAnalytics:        true,
}

var policy = map[Role]Set{
	RoleAdministrator:      everything,
	RoleMainPMO:            everything,
	RoleSubPMO:             reviewer,
	RoleDepartmentDirector: reviewer,
	RoleProjectManager: {
		CanCreateProject:       true,
		CanEditProject:         true,
		CanSubmitChangeRequest: true,
		CanCreateTask:          true,
		CanAssignTask:          true,
	},
	RoleExecutive: {
		CanApproveProject:     true,
		CanViewAllDepartments: true,
		CanViewReports:        true,
		CanViewAnalytics:      true,
	},
	RoleUser: {
		CanSubmitChangeRequest: true,
	},
}

// For returns the capability set of a role. Unknown or empty roles get the zero Set.
func For(role Role) Set {
	return policy[role]
}
