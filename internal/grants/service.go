package grants

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vantage-hq/vantage/internal/authz"
	"github.com/vantage-hq/vantage/internal/fieldsec"
)

// RepositoryPort defines the data access the loader needs. The pgx
// repository is the production implementation; tests inject stubs.
type RepositoryPort interface {
	UserPermissionCodes(ctx context.Context, userID int64) ([]string, error)
	UserRoles(ctx context.Context, userID int64) ([]authz.RoleRef, error)
	UserTags(ctx context.Context, userID int64) ([]string, error)
	UserOrgContext(ctx context.Context, userID int64) (authz.OrgContext, error)
	FieldRules(ctx context.Context) ([]fieldsec.Rule, error)
	UserMaxLevel(ctx context.Context, userID int64) (int, error)
}

// Service is the server-side loader: the single source of truth the
// permission and field sensitivity stores mirror. It assembles snapshots
// from the relational joins and stamps their expiry.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time
}

// NewService wires the loader.
func NewService(repo RepositoryPort, logger *slog.Logger, snapshotTTL time.Duration) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
		ttl:    snapshotTTL,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// LoadGrants assembles the permission snapshot for a subject. The four
// independent queries run concurrently; any failure aborts the whole
// load so a partial snapshot can never be published.
func (s *Service) LoadGrants(ctx context.Context, userID int64) (*authz.Snapshot, error) {
	var (
		permissions []string
		roles       []authz.RoleRef
		tags        []string
		org         authz.OrgContext
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		permissions, err = s.repo.UserPermissionCodes(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = s.repo.UserRoles(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		tags, err = s.repo.UserTags(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		org, err = s.repo.UserOrgContext(ctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("grants: load grants: %w", err)
	}

	loadedAt := s.now()
	return authz.NewSnapshot(permissions, roles, tags, org, loadedAt, loadedAt.Add(s.ttl)), nil
}

// LoadFieldRules assembles the field sensitivity snapshot for a subject.
func (s *Service) LoadFieldRules(ctx context.Context, userID int64) (*fieldsec.Snapshot, error) {
	var (
		rules    []fieldsec.Rule
		maxLevel int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rules, err = s.repo.FieldRules(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		maxLevel, err = s.repo.UserMaxLevel(ctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("grants: load field rules: %w", err)
	}

	loadedAt := s.now()
	return fieldsec.NewSnapshot(rules, maxLevel, loadedAt, loadedAt.Add(s.ttl)), nil
}

var (
	_ authz.Loader    = (*Service)(nil)
	_ fieldsec.Loader = (*Service)(nil)
)
