package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"zkworkspace/internal/audit"
	orgmodels "zkworkspace/internal/org/models"
	"zkworkspace/internal/platform/metrics"
	"zkworkspace/internal/verification/models"
	id "zkworkspace/pkg/domain"
	dErrors "zkworkspace/pkg/domain-errors"
	"zkworkspace/pkg/platform/sentinel"
	"zkworkspace/pkg/platform/tx"
	"zkworkspace/pkg/requestcontext"
)

type Store interface {
	Issue(ctx context.Context, orgID id.OrgID, token string) (*models.Record, error)
	FindByOrgID(ctx context.Context, orgID id.OrgID) (*models.Record, error)
	MarkVerified(ctx context.Context, orgID id.OrgID, now time.Time) (*models.Record, error)
}

type OrgLookup interface {
	FindByID(ctx context.Context, orgID id.OrgID) (*orgmodels.Organization, error)
}

// OwnershipChecker looks for the challenge TXT record. It never fails; an
// unreachable resolver reads as "not verified".
type OwnershipChecker interface {
	Check(ctx context.Context, domain, token string) bool
}

// Throttle bounds how often a key may pass.
type Throttle interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service drives the domain verification state machine: issue a challenge, let
// the organization publish it, check DNS, and record the pending -> verified
// transition.
type Service struct {
	store          Store
	orgs           OrgLookup
	checker        OwnershipChecker
	tx             tx.Runner
	throttle       Throttle
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	newToken       func() (string, error)
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithThrottle limits ownership checks per organization.
func WithThrottle(t Throttle) Option {
	return func(s *Service) {
		s.throttle = t
	}
}

func New(store Store, orgs OrgLookup, checker OwnershipChecker, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		store:    store,
		orgs:     orgs,
		checker:  checker,
		tx:       runner,
		logger:   slog.Default(),
		newToken: models.NewToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckResult is the outcome of an ownership check. When Verified is false,
// Challenge is what the DNS record was expected to contain.
type CheckResult struct {
	Verified  bool
	Challenge models.Challenge
}

// RequestChallenge issues a fresh token for the organization, replacing any
// earlier challenge and resetting the record to pending.
func (s *Service) RequestChallenge(ctx context.Context, orgID id.OrgID) (*models.Challenge, error) {
	org, err := s.findOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	token, err := s.newToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate challenge token")
	}

	var record *models.Record
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		record, err = s.store.Issue(txCtx, orgID, token)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "organization not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue domain challenge")
		}
		return s.emit(txCtx, audit.ActionDomainChallengeIssued, orgID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementChallengesIssued()
	challenge := models.BuildChallenge(org.Domain, *record)
	return &challenge, nil
}

// GetChallenge presents the organization's current challenge.
func (s *Service) GetChallenge(ctx context.Context, orgID id.OrgID) (*models.Challenge, error) {
	org, err := s.findOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	record, err := s.findRecord(ctx, orgID)
	if err != nil {
		return nil, err
	}
	challenge := models.BuildChallenge(org.Domain, *record)
	return &challenge, nil
}

// CheckOwnership looks up the challenge TXT record and, when it carries the
// current token, marks the domain verified. The lookup runs outside any
// transaction so no lock is held while waiting on DNS.
func (s *Service) CheckOwnership(ctx context.Context, orgID id.OrgID) (*CheckResult, error) {
	org, err := s.findOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	record, err := s.findRecord(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if !s.allowCheck(ctx, orgID) {
		s.metrics.ObserveVerificationCheck(metrics.CheckThrottled)
		return nil, dErrors.New(dErrors.CodeRateLimited, "domain ownership was checked too recently")
	}

	if !s.checker.Check(ctx, org.Domain, record.Token) {
		s.metrics.ObserveVerificationCheck(metrics.CheckFailed)
		return &CheckResult{Challenge: models.BuildChallenge(org.Domain, *record)}, nil
	}

	var (
		updated *models.Record
		stale   bool
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.store.FindByOrgID(txCtx, orgID)
		if err != nil {
			return translateRecordErr(err)
		}
		if current.Token != record.Token {
			// Reissued while DNS was being checked; the lookup proved the old token.
			stale, updated = true, current
			return nil
		}
		updated, err = s.store.MarkVerified(txCtx, orgID, requestcontext.Now(txCtx))
		if err != nil {
			return translateRecordErr(err)
		}
		return s.emit(txCtx, audit.ActionDomainVerified, orgID)
	})
	if err != nil {
		return nil, err
	}

	if stale {
		s.metrics.ObserveVerificationCheck(metrics.CheckFailed)
		return &CheckResult{Challenge: models.BuildChallenge(org.Domain, *updated)}, nil
	}
	s.metrics.ObserveVerificationCheck(metrics.CheckVerified)
	s.logger.InfoContext(ctx, "domain verified", "org_id", orgID.String(), "domain", org.Domain)
	return &CheckResult{Verified: true, Challenge: models.BuildChallenge(org.Domain, *updated)}, nil
}

// allowCheck fails open: a throttle outage must not block verification.
func (s *Service) allowCheck(ctx context.Context, orgID id.OrgID) bool {
	if s.throttle == nil {
		return true
	}
	ok, err := s.throttle.Allow(ctx, orgID.String())
	if err != nil {
		s.logger.WarnContext(ctx, "verification throttle unavailable", "org_id", orgID.String(), "error", err)
		return true
	}
	return ok
}

func (s *Service) findOrg(ctx context.Context, orgID id.OrgID) (*orgmodels.Organization, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
	}
	return org, nil
}

func (s *Service) findRecord(ctx context.Context, orgID id.OrgID) (*models.Record, error) {
	record, err := s.store.FindByOrgID(ctx, orgID)
	if err != nil {
		return nil, translateRecordErr(err)
	}
	return record, nil
}

func translateRecordErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "no verification challenge found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load domain verification")
}

func (s *Service) emit(ctx context.Context, action audit.Action, orgID id.OrgID) error {
	if s.auditPublisher == nil {
		return nil
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{Action: action, OrgID: orgID}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}
