package projects

import (
	"time"

	"github.com/aliuyar1234/projecthub/internal/filestore"
	"github.com/aliuyar1234/projecthub/internal/invitations"
	"github.com/aliuyar1234/projecthub/internal/roles"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
)

// MemberInput pairs an email with the role the user should hold.
type MemberInput struct {
	Email  string    `json:"email"`
	RoleID uuid.UUID `json:"roleId"`
}

// LabelInput describes a category or status. Rows with an ID update an
// existing label, rows without one are created.
type LabelInput struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Color       string     `json:"color"`
	Active      *bool      `json:"active,omitempty"`
}

func (l LabelInput) active() bool {
	return l.Active == nil || *l.Active
}

// CreateInput is the payload of Manager.Create.
type CreateInput struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	IsPublic    bool       `json:"isPublic"`
	TypeID      *uuid.UUID `json:"typeId,omitempty"`

	Categories []LabelInput `json:"categories"`
	Statuses   []LabelInput `json:"statuses"`

	// Members are invited without a role.
	Members          []string      `json:"members"`
	MembersWithRoles []MemberInput `json:"membersWithRoles"`

	Icon *filestore.File `json:"-"`
}

// UpdateInput is the payload of Manager.Update. Nil fields are left as they
// are; a nil label or member list leaves that collection untouched.
type UpdateInput struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	IsPublic    *bool      `json:"isPublic,omitempty"`
	TypeID      *uuid.UUID `json:"typeId,omitempty"`
	ClearType   bool       `json:"clearType,omitempty"`

	Categories []LabelInput `json:"categories"`
	Statuses   []LabelInput `json:"statuses"`

	// UsersWithRoles is the complete member list after the update.
	UsersWithRoles []MemberInput `json:"usersWithRoles"`

	Icon       *filestore.File `json:"-"`
	RemoveIcon bool            `json:"removeIcon,omitempty"`
}

// TypeView is a project type rendered in one locale.
type TypeView struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
	Name string    `json:"name"`
}

// LabelView is a category or status rendered in one locale.
type LabelView struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	Active      bool      `json:"active"`
}

// MemberView is one membership of a project.
type MemberView struct {
	UserID     uuid.UUID `json:"userId"`
	Email      string    `json:"email"`
	RoleID     uuid.UUID `json:"roleId"`
	RoleCode   string    `json:"roleCode"`
	AssignedAt time.Time `json:"assignedAt"`
}

// ProjectView is the list representation of a project.
type ProjectView struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPublic    bool      `json:"isPublic"`
	Type        *TypeView `json:"type,omitempty"`
	IconURL     *string   `json:"iconUrl,omitempty"`
	CreatedBy   uuid.UUID `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Details is a project with everything a project page renders.
type Details struct {
	ProjectView
	Categories  []LabelView        `json:"categories"`
	Statuses    []LabelView        `json:"statuses"`
	Members     []MemberView       `json:"members"`
	Invitations []invitations.View `json:"invitations"`
	Roles       []roles.Role       `json:"roles"`
	Permissions []string           `json:"permissions"`
}

func newProjectView(p store.Project, typ *store.ProjectType, locale string) ProjectView {
	v := ProjectView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		IsPublic:    p.IsPublic,
		IconURL:     p.IconURL,
		CreatedBy:   p.CreatedByUserID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if typ != nil {
		v.Type = &TypeView{ID: typ.ID, Code: typ.Code, Name: store.PickTranslation(typ.Translations, locale).Name}
	}
	return v
}

func newLabelView(l store.Label, locale string) LabelView {
	t := store.PickTranslation(l.Translations, locale)
	return LabelView{
		ID:          l.ID,
		Name:        t.Name,
		Description: t.Description,
		Color:       l.Color,
		Active:      l.Active,
	}
}
