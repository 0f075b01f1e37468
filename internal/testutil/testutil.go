// Package testutil builds seeded in-memory stores for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/aliuyar1234/projecthub/internal/roles"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/aliuyar1234/projecthub/internal/store/memory"
	"github.com/stretchr/testify/require"
)

// Env is a memory store with the default role catalog applied.
type Env struct {
	Store   *memory.Store
	Catalog *roles.Catalog
}

// NewEnv returns a store seeded with the built-in role definitions.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	st := memory.New()
	catalog := roles.NewCatalog(16, time.Minute, nil)

	defs, err := roles.DefaultDefinitions()
	require.NoError(t, err)
	require.NoError(t, catalog.Sync(context.Background(), st, defs))

	return &Env{Store: st, Catalog: catalog}
}

// User creates a platform user with the given email.
func (e *Env) User(t *testing.T, email string) *store.User {
	t.Helper()

	u := &store.User{Email: email, DisplayName: email, PlatformRole: store.PlatformUser, Locale: "en"}
	require.NoError(t, e.Store.Users().Create(context.Background(), u))
	return u
}

// Admin creates a platform administrator.
func (e *Env) Admin(t *testing.T, email string) *store.User {
	t.Helper()

	u := &store.User{Email: email, DisplayName: email, PlatformRole: store.PlatformAdmin, Locale: "en"}
	require.NoError(t, e.Store.Users().Create(context.Background(), u))
	return u
}

// Role returns the seeded role with the given code.
func (e *Env) Role(t *testing.T, code string) *store.Role {
	t.Helper()

	role, err := e.Store.Roles().GetByCode(context.Background(), code)
	require.NoError(t, err)
	return role
}

// Project inserts a bare project row owned by creator without any membership.
func (e *Env) Project(t *testing.T, name string, creator *store.User) *store.Project {
	t.Helper()

	p := &store.Project{Name: name, CreatedByUserID: creator.ID}
	require.NoError(t, e.Store.Projects().Create(context.Background(), p))
	return p
}

// Member adds a membership row directly.
func (e *Env) Member(t *testing.T, project *store.Project, user *store.User, roleCode string) {
	t.Helper()

	role := e.Role(t, roleCode)
	m := &store.Membership{ProjectID: project.ID, UserID: user.ID, RoleID: role.ID}
	require.NoError(t, e.Store.Memberships().Insert(context.Background(), m))
}
