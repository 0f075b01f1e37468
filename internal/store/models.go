package store

import (
	"time"

	"github.com/google/uuid"
)

// PlatformRole is a user's role across the whole platform, independent of
// any project membership.
type PlatformRole string

const (
	PlatformAdmin PlatformRole = "ADMIN"
	PlatformUser  PlatformRole = "USER"
)

// InvitationStatus is the lifecycle state of an invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationRejected InvitationStatus = "REJECTED"
)

// LabelKind selects between the two per-project label collections.
type LabelKind string

const (
	LabelCategory LabelKind = "category"
	LabelStatus   LabelKind = "status"
)

// IsValid reports whether k names a known label collection.
func (k LabelKind) IsValid() bool {
	return k == LabelCategory || k == LabelStatus
}

type User struct {
	ID           uuid.UUID    `db:"id"`
	Email        string       `db:"email"`
	DisplayName  string       `db:"display_name"`
	PasswordHash string       `db:"password_hash"`
	PlatformRole PlatformRole `db:"platform_role"`
	Locale       string       `db:"locale"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

// Translation is one localized (name, description) pair.
type Translation struct {
	Locale      string `db:"locale" json:"locale"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

type ProjectType struct {
	ID           uuid.UUID     `db:"id"`
	Code         string        `db:"code"`
	Translations []Translation `db:"-"`
}

type Project struct {
	ID              uuid.UUID  `db:"id"`
	Name            string     `db:"name"`
	Description     string     `db:"description"`
	IsPublic        bool       `db:"is_public"`
	TypeID          *uuid.UUID `db:"type_id"`
	IconKey         *string    `db:"icon_key"`
	IconURL         *string    `db:"icon_url"`
	CreatedByUserID uuid.UUID  `db:"created_by_user_id"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

type Permission struct {
	Code         string        `db:"code"`
	Translations []Translation `db:"-"`
}

// Role is a project-kind-scoped role definition shared by all projects.
// Permission codes are loaded separately through RoleRepository.ListPermissions.
type Role struct {
	ID           uuid.UUID     `db:"id"`
	Code         string        `db:"code"`
	Active       bool          `db:"active"`
	Translations []Translation `db:"-"`
}

type Membership struct {
	ID         uuid.UUID `db:"id"`
	ProjectID  uuid.UUID `db:"project_id"`
	UserID     uuid.UUID `db:"user_id"`
	RoleID     uuid.UUID `db:"role_id"`
	AssignedAt time.Time `db:"assigned_at"`
}

// MemberDetail is a membership joined with the user's email and the role code.
type MemberDetail struct {
	Membership
	Email    string `db:"email"`
	RoleCode string `db:"role_code"`
}

type Invitation struct {
	ID            uuid.UUID        `db:"id"`
	ProjectID     uuid.UUID        `db:"project_id"`
	InviteeUserID uuid.UUID        `db:"invitee_user_id"`
	InviterUserID uuid.UUID        `db:"inviter_user_id"`
	RoleID        *uuid.UUID       `db:"role_id"`
	Status        InvitationStatus `db:"status"`
	CreatedAt     time.Time        `db:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at"`
}

// Label is a project category or status.
type Label struct {
	ID           uuid.UUID     `db:"id"`
	Kind         LabelKind     `db:"-"`
	ProjectID    uuid.UUID     `db:"project_id"`
	Color        string        `db:"color"`
	Active       bool          `db:"active"`
	Translations []Translation `db:"-"`
	CreatedAt    time.Time     `db:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at"`
}

type Notification struct {
	ID          uuid.UUID      `db:"id"`
	Type        string         `db:"type"`
	RecipientID uuid.UUID      `db:"recipient_id"`
	TitleKey    string         `db:"title_key"`
	MessageKey  string         `db:"message_key"`
	Data        map[string]any `db:"data"`
	SendEmail   bool           `db:"send_email"`
	ReadAt      *time.Time     `db:"read_at"`
	CreatedAt   time.Time      `db:"created_at"`
}

type AuditEvent struct {
	ID          uuid.UUID      `db:"id"`
	ProjectID   *uuid.UUID     `db:"project_id"`
	ActorUserID *uuid.UUID     `db:"actor_user_id"`
	Action      string         `db:"action"`
	Meta        map[string]any `db:"meta"`
	CreatedAt   time.Time      `db:"created_at"`
}

// CloneTranslations returns a copy of ts that shares no backing array.
func CloneTranslations(ts []Translation) []Translation {
	if ts == nil {
		return nil
	}
	return append([]Translation(nil), ts...)
}

// PickTranslation returns the translation for locale, falling back to the
// first entry. The zero value is returned when ts is empty.
func PickTranslation(ts []Translation, locale string) Translation {
	for _, t := range ts {
		if t.Locale == locale {
			return t
		}
	}
	if len(ts) > 0 {
		return ts[0]
	}
	return Translation{}
}
