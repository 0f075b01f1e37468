package roles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aliuyar1234/projecthub/internal/metrics"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Catalog reads role definitions and keeps an expiring cache of their
// permission sets. It holds no transaction state: every read goes through
// the Queries handle of the caller.
type Catalog struct {
	cache   *lru.LRU[uuid.UUID, PermissionSet]
	group   singleflight.Group
	metrics *metrics.Metrics
}

// NewCatalog creates a catalog whose permission cache holds up to size roles
// for ttl. m may be nil.
func NewCatalog(size int, ttl time.Duration, m *metrics.Metrics) *Catalog {
	if size <= 0 {
		size = 64
	}
	return &Catalog{
		cache:   lru.NewLRU[uuid.UUID, PermissionSet](size, nil, ttl),
		metrics: m,
	}
}

// FindByCode returns the stored role with the given code.
func (c *Catalog) FindByCode(ctx context.Context, q store.Queries, code string) (*store.Role, error) {
	role, err := q.Roles().GetByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find role %s: %w", code, err)
	}
	return role, nil
}

// Manager resolves the MANAGER role, reporting a configuration fault when
// the deployment was never seeded.
func (c *Catalog) Manager(ctx context.Context, q store.Queries) (*store.Role, error) {
	role, err := c.FindByCode(ctx, q, CodeManager)
	if errors.Is(err, ErrRoleNotFound) {
		return nil, ErrManagerRoleNotConfigured
	}
	return role, err
}

// FindByID returns the role translated into locale.
func (c *Catalog) FindByID(ctx context.Context, q store.Queries, id uuid.UUID, locale string) (*Role, error) {
	role, err := q.Roles().GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find role: %w", err)
	}

	perms, err := c.refresh(ctx, q, role.ID)
	if err != nil {
		return nil, err
	}
	out := render(role, perms, locale)
	return &out, nil
}

// ListAll returns the active roles ordered by id.
func (c *Catalog) ListAll(ctx context.Context, q store.Queries, locale string) ([]Role, error) {
	all, err := q.Roles().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	out := make([]Role, 0, len(all))
	for i := range all {
		if !all[i].Active {
			continue
		}
		perms, err := c.refresh(ctx, q, all[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, render(&all[i], perms, locale))
	}
	return out, nil
}

// Permissions returns the permission set of a role, served from cache when
// possible. Concurrent misses share a load only when they come through the
// same Queries handle, so a transaction never waits on a read that is
// itself blocked behind that transaction.
func (c *Catalog) Permissions(ctx context.Context, q store.Queries, roleID uuid.UUID) (PermissionSet, error) {
	if perms, ok := c.cache.Get(roleID); ok {
		c.metrics.ObserveRoleCache(true)
		return perms, nil
	}
	c.metrics.ObserveRoleCache(false)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%p/%s", q, roleID)
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.refresh(loadCtx, q, roleID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(PermissionSet), nil
	}
}

// Purge drops every cached permission set.
func (c *Catalog) Purge() {
	c.cache.Purge()
}

func (c *Catalog) refresh(ctx context.Context, q store.Queries, roleID uuid.UUID) (PermissionSet, error) {
	codes, err := q.Roles().ListPermissions(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role permissions: %w", err)
	}
	perms := NewPermissionSet(codes...)
	c.cache.Add(roleID, perms)
	return perms, nil
}

func render(role *store.Role, perms PermissionSet, locale string) Role {
	tr := store.PickTranslation(role.Translations, locale)
	return Role{
		ID:          role.ID,
		Code:        role.Code,
		Name:        tr.Name,
		Description: tr.Description,
		Permissions: perms.Codes(),
	}
}
