// Package memory is an in-process implementation of store.Store. A
// transaction works on a private copy of the state which replaces the shared
// state on commit; transactions are serialized by a single mutex.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
)

type state struct {
	seq           int64
	order         map[uuid.UUID]int64
	users         map[uuid.UUID]store.User
	projects      map[uuid.UUID]store.Project
	types         map[uuid.UUID]store.ProjectType
	roles         map[uuid.UUID]store.Role
	permissions   map[string]store.Permission
	rolePerms     map[uuid.UUID][]string
	memberships   map[uuid.UUID]store.Membership
	invitations   map[uuid.UUID]store.Invitation
	labels        map[store.LabelKind]map[uuid.UUID]store.Label
	notifications map[uuid.UUID]store.Notification
	audit         []store.AuditEvent
}

func newState() *state {
	return &state{
		order:         map[uuid.UUID]int64{},
		users:         map[uuid.UUID]store.User{},
		projects:      map[uuid.UUID]store.Project{},
		types:         map[uuid.UUID]store.ProjectType{},
		roles:         map[uuid.UUID]store.Role{},
		permissions:   map[string]store.Permission{},
		rolePerms:     map[uuid.UUID][]string{},
		memberships:   map[uuid.UUID]store.Membership{},
		invitations:   map[uuid.UUID]store.Invitation{},
		labels:        map[store.LabelKind]map[uuid.UUID]store.Label{store.LabelCategory: {}, store.LabelStatus: {}},
		notifications: map[uuid.UUID]store.Notification{},
	}
}

// clone copies every map. Row values are treated as immutable once stored:
// writers always store fresh slices and maps, so a shallow copy suffices.
func (s *state) clone() *state {
	c := &state{seq: s.seq}
	c.order = copyMap(s.order)
	c.users = copyMap(s.users)
	c.projects = copyMap(s.projects)
	c.types = copyMap(s.types)
	c.roles = copyMap(s.roles)
	c.permissions = copyMap(s.permissions)
	c.rolePerms = copyMap(s.rolePerms)
	c.memberships = copyMap(s.memberships)
	c.invitations = copyMap(s.invitations)
	c.labels = map[store.LabelKind]map[uuid.UUID]store.Label{}
	for k, v := range s.labels {
		c.labels[k] = copyMap(v)
	}
	c.notifications = copyMap(s.notifications)
	c.audit = append([]store.AuditEvent(nil), s.audit...)
	return c
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) stamp(id uuid.UUID) {
	s.seq++
	s.order[id] = s.seq
}

func (s *state) sortByOrder(ids []uuid.UUID) {
	sort.SliceStable(ids, func(i, j int) bool { return s.order[ids[i]] < s.order[ids[j]] })
}

// Store is an in-memory store.Store.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time

	root *queries
}

// New returns an empty store.
func New() *Store {
	s := &Store{
		st:  newState(),
		now: func() time.Time { return time.Now().UTC() },
	}
	s.root = &queries{store: s}
	return s
}

// SetClock overrides the time source used for generated timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, q store.Queries) error) error {
	s.mu.Lock()
	tx := &queries{store: s, st: s.st.clone(), inTx: true}
	committed := false
	defer func() {
		if !committed {
			s.mu.Unlock()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.st = tx.st
	committed = true
	s.mu.Unlock()

	for _, hook := range tx.hooks {
		hook(ctx)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close()                         {}

func (s *Store) Users() store.UserRepository                 { return s.root.Users() }
func (s *Store) Projects() store.ProjectRepository           { return s.root.Projects() }
func (s *Store) Roles() store.RoleRepository                 { return s.root.Roles() }
func (s *Store) Memberships() store.MembershipRepository     { return s.root.Memberships() }
func (s *Store) Invitations() store.InvitationRepository     { return s.root.Invitations() }
func (s *Store) Labels() store.LabelRepository               { return s.root.Labels() }
func (s *Store) Notifications() store.NotificationRepository { return s.root.Notifications() }
func (s *Store) Audit() store.AuditRepository                { return s.root.Audit() }
func (s *Store) AfterCommit(fn func(ctx context.Context))    { s.root.AfterCommit(fn) }

type queries struct {
	store *Store
	st    *state
	inTx  bool
	hooks []func(ctx context.Context)
}

// do runs fn against the transaction's private state, or against the shared
// state under the store mutex when not in a transaction.
func (q *queries) do(fn func(st *state, now time.Time) error) error {
	if q.inTx {
		return fn(q.st, q.store.now())
	}
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	return fn(q.store.st, q.store.now())
}

func (q *queries) AfterCommit(fn func(ctx context.Context)) {
	if q.inTx {
		q.hooks = append(q.hooks, fn)
		return
	}
	fn(context.Background())
}

func (q *queries) Users() store.UserRepository                 { return userRepo{q} }
func (q *queries) Projects() store.ProjectRepository           { return projectRepo{q} }
func (q *queries) Roles() store.RoleRepository                 { return roleRepo{q} }
func (q *queries) Memberships() store.MembershipRepository     { return membershipRepo{q} }
func (q *queries) Invitations() store.InvitationRepository     { return invitationRepo{q} }
func (q *queries) Labels() store.LabelRepository               { return labelRepo{q} }
func (q *queries) Notifications() store.NotificationRepository { return notificationRepo{q} }
func (q *queries) Audit() store.AuditRepository                { return auditRepo{q} }

func normEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneData(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
