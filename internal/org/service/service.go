package service

import (
	"context"
	"errors"
	"log/slog"

	"zkworkspace/internal/audit"
	"zkworkspace/internal/org/models"
	"zkworkspace/internal/platform/metrics"
	vmodels "zkworkspace/internal/verification/models"
	id "zkworkspace/pkg/domain"
	dErrors "zkworkspace/pkg/domain-errors"
	"zkworkspace/pkg/platform/sentinel"
	"zkworkspace/pkg/platform/tx"
	"zkworkspace/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, org *models.Organization) error
	FindByID(ctx context.Context, orgID id.OrgID) (*models.Organization, error)
	FindByDomain(ctx context.Context, domain string) (*models.Organization, error)
}

// ChallengeStore is the slice of the verification store an organization needs:
// the first challenge is issued together with the organization.
type ChallengeStore interface {
	Issue(ctx context.Context, orgID id.OrgID, token string) (*vmodels.Record, error)
	FindByOrgID(ctx context.Context, orgID id.OrgID) (*vmodels.Record, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service registers organizations and serves their public view.
type Service struct {
	orgs           Store
	challenges     ChallengeStore
	tx             tx.Runner
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

func New(orgs Store, challenges ChallengeStore, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		orgs:       orgs,
		challenges: challenges,
		tx:         runner,
		logger:     slog.Default(),
		newToken:   vmodels.NewToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrgRequest carries the registration input. TreeRoot is optional; an
// absent root starts the organization at 32 zero bytes. Settings are stored
// as given.
type CreateOrgRequest struct {
	Name              string
	Domain            string
	VerificationModes []string
	TreeRoot          []byte
	Settings          map[string]any
}

// OrgView is an organization together with its domain challenge, if any.
type OrgView struct {
	Org                *models.Organization `json:"org"`
	DomainVerification *vmodels.Challenge   `json:"domain_verification"`
}

// CreateOrg registers an organization and issues its first domain challenge in
// the same unit of work.
func (s *Service) CreateOrg(ctx context.Context, req CreateOrgRequest) (*OrgView, error) {
	modes, err := models.ParseVerificationModes(req.VerificationModes)
	if err != nil {
		return nil, err
	}
	var root models.TreeRoot
	if len(req.TreeRoot) > 0 {
		if root, err = models.ParseTreeRoot(req.TreeRoot); err != nil {
			return nil, err
		}
	}

	org, err := models.NewOrganization(id.NewOrgID(), req.Name, req.Domain, modes, root, req.Settings, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	token, err := s.newToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate challenge token")
	}

	var record *vmodels.Record
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.orgs.Create(txCtx, org); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "domain is already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create organization")
		}
		record, err = s.challenges.Issue(txCtx, org.ID, token)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue domain challenge")
		}
		if err := s.emit(txCtx, audit.ActionOrgCreated, org.ID); err != nil {
			return err
		}
		return s.emit(txCtx, audit.ActionDomainChallengeIssued, org.ID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementOrgsCreated()
	s.metrics.IncrementChallengesIssued()
	s.logger.InfoContext(ctx, "organization created", "org_id", org.ID.String(), "domain", org.Domain)
	challenge := vmodels.BuildChallenge(org.Domain, *record)
	return &OrgView{Org: org, DomainVerification: &challenge}, nil
}

func (s *Service) GetByID(ctx context.Context, orgID id.OrgID) (*OrgView, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, translateFindErr(err)
	}
	return s.view(ctx, org)
}

// GetByDomain looks the organization up by its domain exactly as registered.
func (s *Service) GetByDomain(ctx context.Context, domain string) (*OrgView, error) {
	org, err := s.orgs.FindByDomain(ctx, domain)
	if err != nil {
		return nil, translateFindErr(err)
	}
	return s.view(ctx, org)
}

func (s *Service) view(ctx context.Context, org *models.Organization) (*OrgView, error) {
	view := &OrgView{Org: org}
	record, err := s.challenges.FindByOrgID(ctx, org.ID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return view, nil
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load domain verification")
	}
	challenge := vmodels.BuildChallenge(org.Domain, *record)
	view.DomainVerification = &challenge
	return view, nil
}

func translateFindErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "organization not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
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
