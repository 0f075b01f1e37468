// Package roles serves the shared role definitions and their permission sets.
package roles

import (
	"sort"

	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/google/uuid"
)

// Well-known role codes.
const (
	CodeManager = "MANAGER"
	CodeMember  = "MEMBER"
	CodeClient  = "CLIENT"
)

// Permission codes checked by the access layer.
const (
	PermEditProject   = "EDIT_PROJECT"
	PermDeleteProject = "DELETE_PROJECT"
	PermManageMembers = "MANAGE_MEMBERS"
	PermManageTasks   = "MANAGE_TASKS"
	PermInviteUsers   = "INVITE_USERS"
	PermShowTasks     = "SHOW_TASKS"
	PermViewProject   = "VIEW_PROJECT"
)

var (
	ErrRoleNotFound = apperrors.New(apperrors.KindNotFound, "errors.role.notFound")

	// ErrManagerRoleNotConfigured means the deployment has no MANAGER role
	// seeded. It is not recoverable by retrying the request.
	ErrManagerRoleNotConfigured = apperrors.New(apperrors.KindConfigurationFault, "errors.role.managerNotConfigured")
)

// Role is a role definition rendered in a single locale.
type Role struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions []string  `json:"permissions"`
}

// PermissionSet is an immutable set of permission codes.
type PermissionSet map[string]struct{}

func NewPermissionSet(codes ...string) PermissionSet {
	s := make(PermissionSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

func (s PermissionSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// HasAny reports whether s and anyOf intersect.
func (s PermissionSet) HasAny(anyOf ...string) bool {
	for _, c := range anyOf {
		if s.Has(c) {
			return true
		}
	}
	return false
}

// Codes returns the permission codes in lexical order.
func (s PermissionSet) Codes() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
