// Package store defines the persistence contract shared by the domain
// packages. Implementations live in store/postgres and store/memory.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("store: conflict")
)

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListByEmails(ctx context.Context, emails []string) ([]User, error)
	Create(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

type ProjectRepository interface {
	Create(ctx context.Context, p *Project) error
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	// ListVisible returns public projects and projects userID is a member of,
	// newest first.
	ListVisible(ctx context.Context, userID uuid.UUID) ([]Project, error)

	GetType(ctx context.Context, id uuid.UUID) (*ProjectType, error)
	ListTypes(ctx context.Context) ([]ProjectType, error)
	UpsertType(ctx context.Context, t *ProjectType) error
}

type RoleRepository interface {
	// List returns every role, active or not, ordered by id ascending.
	List(ctx context.Context) ([]Role, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Role, error)
	GetByCode(ctx context.Context, code string) (*Role, error)
	ListPermissions(ctx context.Context, roleID uuid.UUID) ([]string, error)

	// Upsert matches on Code, assigns r.ID and replaces the translations.
	Upsert(ctx context.Context, r *Role) error
	SetPermissions(ctx context.Context, roleID uuid.UUID, codes []string) error
	UpsertPermission(ctx context.Context, p *Permission) error
}

type MembershipRepository interface {
	Get(ctx context.Context, projectID, userID uuid.UUID) (*Membership, error)
	Insert(ctx context.Context, m *Membership) error
	UpdateRole(ctx context.Context, id, roleID uuid.UUID, assignedAt time.Time) error
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
	DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]MemberDetail, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]MemberDetail, error)
	CountWithRole(ctx context.Context, projectID, roleID uuid.UUID) (int, error)
}

type InvitationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Invitation, error)
	FindPending(ctx context.Context, projectID, inviteeID uuid.UUID) (*Invitation, error)
	Insert(ctx context.Context, inv *Invitation) error
	// Update rewrites role, inviter and updated_at of a pending invitation.
	Update(ctx context.Context, inv *Invitation) error
	// Transition moves an invitation from one status to another and reports
	// whether the row was still in the from state.
	Transition(ctx context.Context, id uuid.UUID, from, to InvitationStatus, at time.Time) (bool, error)
	ListPendingByInvitee(ctx context.Context, userID uuid.UUID) ([]Invitation, error)
	ListPendingByProject(ctx context.Context, projectID uuid.UUID) ([]Invitation, error)
	DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
}

type LabelRepository interface {
	ListByProject(ctx context.Context, kind LabelKind, projectID uuid.UUID) ([]Label, error)
	GetByID(ctx context.Context, kind LabelKind, id uuid.UUID) (*Label, error)
	Insert(ctx context.Context, l *Label) error
	// Update rewrites color, active flag and every translation.
	Update(ctx context.Context, l *Label) error
	Delete(ctx context.Context, kind LabelKind, id uuid.UUID) error
	DeleteByProject(ctx context.Context, kind LabelKind, projectID uuid.UUID) (int64, error)
}

type NotificationRepository interface {
	Insert(ctx context.Context, n *Notification) error
	// ListByRecipient filters by type unless typ is empty; newest first.
	ListByRecipient(ctx context.Context, recipientID uuid.UUID, typ string, limit int) ([]Notification, error)
	UpdateData(ctx context.Context, id uuid.UUID, data map[string]any) error
	MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) (bool, error)
	DeleteReadBefore(ctx context.Context, before time.Time) (int64, error)
}

type AuditRepository interface {
	Insert(ctx context.Context, e *AuditEvent) error
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]AuditEvent, error)
}

// Queries gives access to every repository through a single handle. A
// handle obtained from Store.InTx is bound to that transaction and must
// only be used by the goroutine running the callback.
type Queries interface {
	Users() UserRepository
	Projects() ProjectRepository
	Roles() RoleRepository
	Memberships() MembershipRepository
	Invitations() InvitationRepository
	Labels() LabelRepository
	Notifications() NotificationRepository
	Audit() AuditRepository

	// AfterCommit registers fn to run once the enclosing transaction commits.
	// Outside a transaction fn runs immediately. Hooks are dropped on rollback.
	AfterCommit(fn func(ctx context.Context))
}

// Store is a Queries handle that can also open transactions.
type Store interface {
	Queries

	// InTx runs fn in a transaction, committing if fn returns nil and
	// rolling back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error
	Ping(ctx context.Context) error
	Close()
}
