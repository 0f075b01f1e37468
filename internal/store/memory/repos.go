package memory

import (
	"context"
	"sort"
	"time"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
)

type userRepo struct{ q *queries }

func (r userRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	var out *store.User
	err := r.q.do(func(st *state, _ time.Time) error {
		u, ok := st.users[id]
		if !ok {
			return store.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	var out *store.User
	err := r.q.do(func(st *state, _ time.Time) error {
		want := normEmail(email)
		for _, u := range st.users {
			if normEmail(u.Email) == want {
				u := u
				out = &u
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (r userRepo) ListByEmails(ctx context.Context, emails []string) ([]store.User, error) {
	var out []store.User
	err := r.q.do(func(st *state, _ time.Time) error {
		want := make(map[string]bool, len(emails))
		for _, e := range emails {
			want[normEmail(e)] = true
		}
		ids := make([]uuid.UUID, 0)
		for id, u := range st.users {
			if want[normEmail(u.Email)] {
				ids = append(ids, id)
			}
		}
		st.sortByOrder(ids)
		for _, id := range ids {
			out = append(out, st.users[id])
		}
		return nil
	})
	return out, err
}

func (r userRepo) Create(ctx context.Context, u *store.User) error {
	return r.q.do(func(st *state, now time.Time) error {
		for _, existing := range st.users {
			if normEmail(existing.Email) == normEmail(u.Email) {
				return store.ErrConflict
			}
		}
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		if u.PlatformRole == "" {
			u.PlatformRole = store.PlatformUser
		}
		u.CreatedAt, u.UpdatedAt = now, now
		st.users[u.ID] = *u
		st.stamp(u.ID)
		return nil
	})
}

func (r userRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.q.do(func(st *state, now time.Time) error {
		u, ok := st.users[id]
		if !ok {
			return store.ErrNotFound
		}
		u.PasswordHash = passwordHash
		u.UpdatedAt = now
		st.users[id] = u
		return nil
	})
}

type projectRepo struct{ q *queries }

func (r projectRepo) Create(ctx context.Context, p *store.Project) error {
	return r.q.do(func(st *state, now time.Time) error {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.CreatedAt, p.UpdatedAt = now, now
		st.projects[p.ID] = *p
		st.stamp(p.ID)
		return nil
	})
}

func (r projectRepo) Update(ctx context.Context, p *store.Project) error {
	return r.q.do(func(st *state, now time.Time) error {
		existing, ok := st.projects[p.ID]
		if !ok {
			return store.ErrNotFound
		}
		p.CreatedAt = existing.CreatedAt
		p.CreatedByUserID = existing.CreatedByUserID
		p.UpdatedAt = now
		st.projects[p.ID] = *p
		return nil
	})
}

func (r projectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.q.do(func(st *state, _ time.Time) error {
		if _, ok := st.projects[id]; !ok {
			return store.ErrNotFound
		}
		delete(st.projects, id)
		// Mirrors the ON DELETE CASCADE foreign keys of the SQL schema.
		for _, labels := range st.labels {
			for lid, l := range labels {
				if l.ProjectID == id {
					delete(labels, lid)
				}
			}
		}
		for mid, m := range st.memberships {
			if m.ProjectID == id {
				delete(st.memberships, mid)
			}
		}
		for iid, inv := range st.invitations {
			if inv.ProjectID == id {
				delete(st.invitations, iid)
			}
		}
		return nil
	})
}

func (r projectRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.Project, error) {
	var out *store.Project
	err := r.q.do(func(st *state, _ time.Time) error {
		p, ok := st.projects[id]
		if !ok {
			return store.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r projectRepo) ListVisible(ctx context.Context, userID uuid.UUID) ([]store.Project, error) {
	var out []store.Project
	err := r.q.do(func(st *state, _ time.Time) error {
		member := map[uuid.UUID]bool{}
		for _, m := range st.memberships {
			if m.UserID == userID {
				member[m.ProjectID] = true
			}
		}
		ids := make([]uuid.UUID, 0)
		for id, p := range st.projects {
			if p.IsPublic || member[id] {
				ids = append(ids, id)
			}
		}
		st.sortByOrder(ids)
		for i := len(ids) - 1; i >= 0; i-- {
			out = append(out, st.projects[ids[i]])
		}
		return nil
	})
	return out, err
}

func (r projectRepo) GetType(ctx context.Context, id uuid.UUID) (*store.ProjectType, error) {
	var out *store.ProjectType
	err := r.q.do(func(st *state, _ time.Time) error {
		t, ok := st.types[id]
		if !ok {
			return store.ErrNotFound
		}
		t.Translations = store.CloneTranslations(t.Translations)
		out = &t
		return nil
	})
	return out, err
}

func (r projectRepo) ListTypes(ctx context.Context) ([]store.ProjectType, error) {
	var out []store.ProjectType
	err := r.q.do(func(st *state, _ time.Time) error {
		ids := make([]uuid.UUID, 0, len(st.types))
		for id := range st.types {
			ids = append(ids, id)
		}
		st.sortByOrder(ids)
		for _, id := range ids {
			out = append(out, st.types[id])
		}
		return nil
	})
	return out, err
}

func (r projectRepo) UpsertType(ctx context.Context, t *store.ProjectType) error {
	return r.q.do(func(st *state, _ time.Time) error {
		for id, existing := range st.types {
			if existing.Code == t.Code {
				t.ID = id
				st.types[id] = store.ProjectType{ID: id, Code: t.Code, Translations: store.CloneTranslations(t.Translations)}
				return nil
			}
		}
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		st.types[t.ID] = store.ProjectType{ID: t.ID, Code: t.Code, Translations: store.CloneTranslations(t.Translations)}
		st.stamp(t.ID)
		return nil
	})
}

type roleRepo struct{ q *queries }

func (r roleRepo) List(ctx context.Context) ([]store.Role, error) {
	var out []store.Role
	err := r.q.do(func(st *state, _ time.Time) error {
		for _, role := range st.roles {
			role.Translations = store.CloneTranslations(role.Translations)
			out = append(out, role)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
		return nil
	})
	return out, err
}

func (r roleRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.Role, error) {
	var out *store.Role
	err := r.q.do(func(st *state, _ time.Time) error {
		role, ok := st.roles[id]
		if !ok {
			return store.ErrNotFound
		}
		role.Translations = store.CloneTranslations(role.Translations)
		out = &role
		return nil
	})
	return out, err
}

func (r roleRepo) GetByCode(ctx context.Context, code string) (*store.Role, error) {
	var out *store.Role
	err := r.q.do(func(st *state, _ time.Time) error {
		for _, role := range st.roles {
			if role.Code == code {
				role.Translations = store.CloneTranslations(role.Translations)
				out = &role
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (r roleRepo) ListPermissions(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	var out []string
	err := r.q.do(func(st *state, _ time.Time) error {
		out = append([]string(nil), st.rolePerms[roleID]...)
		return nil
	})
	return out, err
}

func (r roleRepo) Upsert(ctx context.Context, role *store.Role) error {
	return r.q.do(func(st *state, _ time.Time) error {
		for id, existing := range st.roles {
			if existing.Code == role.Code {
				role.ID = id
				break
			}
		}
		if role.ID == uuid.Nil {
			role.ID = uuid.New()
			st.stamp(role.ID)
		}
		st.roles[role.ID] = store.Role{
			ID:           role.ID,
			Code:         role.Code,
			Active:       role.Active,
			Translations: store.CloneTranslations(role.Translations),
		}
		return nil
	})
}

func (r roleRepo) SetPermissions(ctx context.Context, roleID uuid.UUID, codes []string) error {
	return r.q.do(func(st *state, _ time.Time) error {
		if _, ok := st.roles[roleID]; !ok {
			return store.ErrNotFound
		}
		for _, c := range codes {
			if _, ok := st.permissions[c]; !ok {
				return store.ErrNotFound
			}
		}
		st.rolePerms[roleID] = append([]string(nil), codes...)
		return nil
	})
}

func (r roleRepo) UpsertPermission(ctx context.Context, p *store.Permission) error {
	return r.q.do(func(st *state, _ time.Time) error {
		st.permissions[p.Code] = store.Permission{Code: p.Code, Translations: store.CloneTranslations(p.Translations)}
		return nil
	})
}

type membershipRepo struct{ q *queries }

func (r membershipRepo) Get(ctx context.Context, projectID, userID uuid.UUID) (*store.Membership, error) {
	var out *store.Membership
	err := r.q.do(func(st *state, _ time.Time) error {
		for _, m := range st.memberships {
			if m.ProjectID == projectID && m.UserID == userID {
				m := m
				out = &m
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (r membershipRepo) Insert(ctx context.Context, m *store.Membership) error {
	return r.q.do(func(st *state, now time.Time) error {
		for _, existing := range st.memberships {
			if existing.ProjectID == m.ProjectID && existing.UserID == m.UserID {
				return store.ErrConflict
			}
		}
		if _, ok := st.projects[m.ProjectID]; !ok {
			return store.ErrNotFound
		}
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		if m.AssignedAt.IsZero() {
			m.AssignedAt = now
		}
		st.memberships[m.ID] = *m
		st.stamp(m.ID)
		return nil
	})
}

func (r membershipRepo) UpdateRole(ctx context.Context, id, roleID uuid.UUID, assignedAt time.Time) error {
	return r.q.do(func(st *state, _ time.Time) error {
		m, ok := st.memberships[id]
		if !ok {
			return store.ErrNotFound
		}
		m.RoleID = roleID
		m.AssignedAt = assignedAt
		st.memberships[id] = m
		return nil
	})
}

func (r membershipRepo) Delete(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	removed := false
	err := r.q.do(func(st *state, _ time.Time) error {
		for id, m := range st.memberships {
			if m.ProjectID == projectID && m.UserID == userID {
				delete(st.memberships, id)
				removed = true
			}
		}
		return nil
	})
	return removed, err
}

func (r membershipRepo) DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var n int64
	err := r.q.do(func(st *state, _ time.Time) error {
		for id, m := range st.memberships {
			if m.ProjectID == projectID {
				delete(st.memberships, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r membershipRepo) list(st *state, match func(store.Membership) bool) []store.MemberDetail {
	ids := make([]uuid.UUID, 0)
	for id, m := range st.memberships {
		if match(m) {
			ids = append(ids, id)
		}
	}
	st.sortByOrder(ids)
	out := make([]store.MemberDetail, 0, len(ids))
	for _, id := range ids {
		m := st.memberships[id]
		out = append(out, store.MemberDetail{
			Membership: m,
			Email:      st.users[m.UserID].Email,
			RoleCode:   st.roles[m.RoleID].Code,
		})
	}
	return out
}

func (r membershipRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]store.MemberDetail, error) {
	var out []store.MemberDetail
	err := r.q.do(func(st *state, _ time.Time) error {
		out = r.list(st, func(m store.Membership) bool { return m.ProjectID == projectID })
		return nil
	})
	return out, err
}

func (r membershipRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]store.MemberDetail, error) {
	var out []store.MemberDetail
	err := r.q.do(func(st *state, _ time.Time) error {
		out = r.list(st, func(m store.Membership) bool { return m.UserID == userID })
		return nil
	})
	return out, err
}

func (r membershipRepo) CountWithRole(ctx context.Context, projectID, roleID uuid.UUID) (int, error) {
	n := 0
	err := r.q.do(func(st *state, _ time.Time) error {
		for _, m := range st.memberships {
			if m.ProjectID == projectID && m.RoleID == roleID {
				n++
			}
		}
		return nil
	})
	return n, err
}

type invitationRepo struct{ q *queries }

func (r invitationRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.Invitation, error) {
	var out *store.Invitation
	err := r.q.do(func(st *state, _ time.Time) error {
		inv, ok := st.invitations[id]
		if !ok {
			return store.ErrNotFound
		}
		out = &inv
		return nil
	})
	return out, err
}

func (r invitationRepo) FindPending(ctx context.Context, projectID, inviteeID uuid.UUID) (*store.Invitation, error) {
	var out *store.Invitation
	err := r.q.do(func(st *state, _ time.Time) error {
		for _, inv := range st.invitations {
			if inv.ProjectID == projectID && inv.InviteeUserID == inviteeID && inv.Status == store.InvitationPending {
				inv := inv
				out = &inv
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (r invitationRepo) Insert(ctx context.Context, inv *store.Invitation) error {
	return r.q.do(func(st *state, now time.Time) error {
		if inv.Status == "" {
			inv.Status = store.InvitationPending
		}
		if inv.Status == store.InvitationPending {
			for _, existing := range st.invitations {
				if existing.ProjectID == inv.ProjectID && existing.InviteeUserID == inv.InviteeUserID && existing.Status == store.InvitationPending {
					return store.ErrConflict
				}
			}
		}
		if _, ok := st.projects[inv.ProjectID]; !ok {
			return store.ErrNotFound
		}
		if inv.ID == uuid.Nil {
			inv.ID = uuid.New()
		}
		inv.CreatedAt, inv.UpdatedAt = now, now
		st.invitations[inv.ID] = *inv
		st.stamp(inv.ID)
		return nil
	})
}

func (r invitationRepo) Update(ctx context.Context, inv *store.Invitation) error {
	return r.q.do(func(st *state, now time.Time) error {
		existing, ok := st.invitations[inv.ID]
		if !ok || existing.Status != store.InvitationPending {
			return store.ErrNotFound
		}
		existing.RoleID = inv.RoleID
		existing.InviterUserID = inv.InviterUserID
		existing.UpdatedAt = now
		st.invitations[inv.ID] = existing
		*inv = existing
		return nil
	})
}

func (r invitationRepo) Transition(ctx context.Context, id uuid.UUID, from, to store.InvitationStatus, at time.Time) (bool, error) {
	moved := false
	err := r.q.do(func(st *state, _ time.Time) error {
		inv, ok := st.invitations[id]
		if !ok || inv.Status != from {
			return nil
		}
		inv.Status = to
		inv.UpdatedAt = at
		st.invitations[id] = inv
		moved = true
		return nil
	})
	return moved, err
}

func (r invitationRepo) listPending(st *state, match func(store.Invitation) bool) []store.Invitation {
	ids := make([]uuid.UUID, 0)
	for id, inv := range st.invitations {
		if inv.Status == store.InvitationPending && match(inv) {
			ids = append(ids, id)
		}
	}
	st.sortByOrder(ids)
	out := make([]store.Invitation, 0, len(ids))
	for _, id := range ids {
		out = append(out, st.invitations[id])
	}
	return out
}

func (r invitationRepo) ListPendingByInvitee(ctx context.Context, userID uuid.UUID) ([]store.Invitation, error) {
	var out []store.Invitation
	err := r.q.do(func(st *state, _ time.Time) error {
		out = r.listPending(st, func(inv store.Invitation) bool { return inv.InviteeUserID == userID })
		return nil
	})
	return out, err
}

func (r invitationRepo) ListPendingByProject(ctx context.Context, projectID uuid.UUID) ([]store.Invitation, error) {
	var out []store.Invitation
	err := r.q.do(func(st *state, _ time.Time) error {
		out = r.listPending(st, func(inv store.Invitation) bool { return inv.ProjectID == projectID })
		return nil
	})
	return out, err
}

func (r invitationRepo) DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var n int64
	err := r.q.do(func(st *state, _ time.Time) error {
		for id, inv := range st.invitations {
			if inv.ProjectID == projectID {
				delete(st.invitations, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

type labelRepo struct{ q *queries }

func (r labelRepo) ListByProject(ctx context.Context, kind store.LabelKind, projectID uuid.UUID) ([]store.Label, error) {
	var out []store.Label
	err := r.q.do(func(st *state, _ time.Time) error {
		ids := make([]uuid.UUID, 0)
		for id, l := range st.labels[kind] {
			if l.ProjectID == projectID {
				ids = append(ids, id)
			}
		}
		st.sortByOrder(ids)
		for _, id := range ids {
			l := st.labels[kind][id]
			l.Translations = store.CloneTranslations(l.Translations)
			out = append(out, l)
		}
		return nil
	})
	return out, err
}

func (r labelRepo) GetByID(ctx context.Context, kind store.LabelKind, id uuid.UUID) (*store.Label, error) {
	var out *store.Label
	err := r.q.do(func(st *state, _ time.Time) error {
		l, ok := st.labels[kind][id]
		if !ok {
			return store.ErrNotFound
		}
		l.Translations = store.CloneTranslations(l.Translations)
		out = &l
		return nil
	})
	return out, err
}

func (r labelRepo) Insert(ctx context.Context, l *store.Label) error {
	return r.q.do(func(st *state, now time.Time) error {
		if _, ok := st.projects[l.ProjectID]; !ok {
			return store.ErrNotFound
		}
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.CreatedAt, l.UpdatedAt = now, now
		stored := *l
		stored.Translations = store.CloneTranslations(l.Translations)
		st.labels[l.Kind][l.ID] = stored
		st.stamp(l.ID)
		return nil
	})
}

func (r labelRepo) Update(ctx context.Context, l *store.Label) error {
	return r.q.do(func(st *state, now time.Time) error {
		existing, ok := st.labels[l.Kind][l.ID]
		if !ok {
			return store.ErrNotFound
		}
		existing.Color = l.Color
		existing.Active = l.Active
		existing.Translations = store.CloneTranslations(l.Translations)
		existing.UpdatedAt = now
		st.labels[l.Kind][l.ID] = existing
		*l = existing
		l.Translations = store.CloneTranslations(existing.Translations)
		return nil
	})
}

func (r labelRepo) Delete(ctx context.Context, kind store.LabelKind, id uuid.UUID) error {
	return r.q.do(func(st *state, _ time.Time) error {
		if _, ok := st.labels[kind][id]; !ok {
			return store.ErrNotFound
		}
		delete(st.labels[kind], id)
		return nil
	})
}

func (r labelRepo) DeleteByProject(ctx context.Context, kind store.LabelKind, projectID uuid.UUID) (int64, error) {
	var n int64
	err := r.q.do(func(st *state, _ time.Time) error {
		for id, l := range st.labels[kind] {
			if l.ProjectID == projectID {
				delete(st.labels[kind], id)
				n++
			}
		}
		return nil
	})
	return n, err
}

type notificationRepo struct{ q *queries }

func (r notificationRepo) Insert(ctx context.Context, n *store.Notification) error {
	return r.q.do(func(st *state, now time.Time) error {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		n.CreatedAt = now
		stored := *n
		stored.Data = cloneData(n.Data)
		st.notifications[n.ID] = stored
		st.stamp(n.ID)
		return nil
	})
}

func (r notificationRepo) ListByRecipient(ctx context.Context, recipientID uuid.UUID, typ string, limit int) ([]store.Notification, error) {
	var out []store.Notification
	err := r.q.do(func(st *state, _ time.Time) error {
		ids := make([]uuid.UUID, 0)
		for id, n := range st.notifications {
			if n.RecipientID == recipientID && (typ == "" || n.Type == typ) {
				ids = append(ids, id)
			}
		}
		st.sortByOrder(ids)
		for i := len(ids) - 1; i >= 0; i-- {
			if limit > 0 && len(out) >= limit {
				break
			}
			n := st.notifications[ids[i]]
			n.Data = cloneData(n.Data)
			out = append(out, n)
		}
		return nil
	})
	return out, err
}

func (r notificationRepo) UpdateData(ctx context.Context, id uuid.UUID, data map[string]any) error {
	return r.q.do(func(st *state, _ time.Time) error {
		n, ok := st.notifications[id]
		if !ok {
			return store.ErrNotFound
		}
		n.Data = cloneData(data)
		st.notifications[id] = n
		return nil
	})
}

func (r notificationRepo) MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) (bool, error) {
	updated := false
	err := r.q.do(func(st *state, _ time.Time) error {
		n, ok := st.notifications[id]
		if !ok || n.RecipientID != recipientID {
			return nil
		}
		if n.ReadAt == nil {
			n.ReadAt = &at
			st.notifications[id] = n
		}
		updated = true
		return nil
	})
	return updated, err
}

func (r notificationRepo) DeleteReadBefore(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	err := r.q.do(func(st *state, _ time.Time) error {
		for id, n := range st.notifications {
			if n.ReadAt != nil && n.ReadAt.Before(before) {
				delete(st.notifications, id)
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}

type auditRepo struct{ q *queries }

func (r auditRepo) Insert(ctx context.Context, e *store.AuditEvent) error {
	return r.q.do(func(st *state, now time.Time) error {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.CreatedAt = now
		stored := *e
		stored.Meta = cloneData(e.Meta)
		st.audit = append(st.audit, stored)
		return nil
	})
}

func (r auditRepo) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]store.AuditEvent, error) {
	var out []store.AuditEvent
	err := r.q.do(func(st *state, _ time.Time) error {
		for i := len(st.audit) - 1; i >= 0; i-- {
			e := st.audit[i]
			if e.ProjectID == nil || *e.ProjectID != projectID {
				continue
			}
			if limit > 0 && len(out) >= limit {
				break
			}
			e.Meta = cloneData(e.Meta)
			out = append(out, e)
		}
		return nil
	})
	return out, err
}
