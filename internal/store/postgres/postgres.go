// Package postgres implements store.Store on top of pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a pgx-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
	root *queries
}

// New wraps an open pool. The pool is owned by the Store and closed by Close.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		root: &queries{db: pool},
	}
}

// Pool exposes the underlying pool for health checks and migrations.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, q store.Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	q := &queries{db: tx, inTx: true}
	if err := fn(ctx, q); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, hook := range q.hooks {
		runHook(ctx, hook)
	}
	return nil
}

func runHook(ctx context.Context, hook func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("After-commit hook panicked")
		}
	}()
	hook(ctx)
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

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
	db    dbtx
	inTx  bool
	hooks []func(ctx context.Context)
}

func (q *queries) AfterCommit(fn func(ctx context.Context)) {
	if q.inTx {
		q.hooks = append(q.hooks, fn)
		return
	}
	runHook(context.Background(), fn)
}

func (q *queries) Users() store.UserRepository                 { return userRepo{q.db} }
func (q *queries) Projects() store.ProjectRepository           { return projectRepo{q.db} }
func (q *queries) Roles() store.RoleRepository                 { return roleRepo{q.db} }
func (q *queries) Memberships() store.MembershipRepository     { return membershipRepo{q.db} }
func (q *queries) Invitations() store.InvitationRepository     { return invitationRepo{q.db} }
func (q *queries) Labels() store.LabelRepository               { return labelRepo{q.db} }
func (q *queries) Notifications() store.NotificationRepository { return notificationRepo{q.db} }
func (q *queries) Audit() store.AuditRepository                { return auditRepo{q.db} }

// mapErr converts driver errors into store sentinels, keeping the original
// error in the chain for logging.
func mapErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w (%s)", op, store.ErrConflict, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w (%s)", op, store.ErrNotFound, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
