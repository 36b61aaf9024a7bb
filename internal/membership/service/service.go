package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"zkworkspace/internal/audit"
	"zkworkspace/internal/membership/models"
	orgmodels "zkworkspace/internal/org/models"
	"zkworkspace/internal/platform/metrics"
	id "zkworkspace/pkg/domain"
	dErrors "zkworkspace/pkg/domain-errors"
	"zkworkspace/pkg/platform/sentinel"
	"zkworkspace/pkg/platform/tx"
	"zkworkspace/pkg/requestcontext"
)

// Store is the membership ledger.
type Store interface {
	// LockLedger serializes ledger writers of one organization until the
	// surrounding transaction ends.
	LockLedger(ctx context.Context, orgID id.OrgID) error
	LatestLeafIndex(ctx context.Context, orgID id.OrgID) (int64, error)
	Insert(ctx context.Context, member models.Member) error
	ListByOrg(ctx context.Context, orgID id.OrgID) ([]models.Member, error)
}

// OrgStore is the organization root registry.
type OrgStore interface {
	FindByID(ctx context.Context, orgID id.OrgID) (*orgmodels.Organization, error)
	FindByDomain(ctx context.Context, domain string) (*orgmodels.Organization, error)
	UpdateTreeRoot(ctx context.Context, orgID id.OrgID, root orgmodels.TreeRoot) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service admits members into organization ledgers.
type Service struct {
	members        Store
	orgs           OrgStore
	tx             tx.Runner
	validator      RootValidator
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
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

// WithRootValidator replaces AcceptAnyRoot.
func WithRootValidator(v RootValidator) Option {
	return func(s *Service) {
		s.validator = v
	}
}

func New(members Store, orgs OrgStore, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		members: members,
		orgs:    orgs,
		tx:      runner,
		logger:  slog.Default(),
		tracer:  otel.Tracer("zkworkspace/membership"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = AcceptAnyRoot{Logger: s.logger}
	}
	return s
}

// Enroll appends the commitment to the ledger of the organization owning
// req.Domain and rotates that organization's root, as one unit of work.
//
// Leaf indices are allocated under the ledger lock, so concurrent enrollments
// into one organization receive distinct, gap-free indices. Any failure rolls
// back both the appended row and the rotation.
func (s *Service) Enroll(ctx context.Context, req models.EnrollRequest) (*models.Enrollment, error) {
	ctx, span := s.tracer.Start(ctx, "membership.Enroll")
	defer span.End()
	start := time.Now()

	enrollment, err := s.enroll(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		s.metrics.IncrementEnrollmentFailure(string(dErrors.CodeOf(err)))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("org.id", enrollment.OrgID.String()),
		attribute.Int64("membership.leaf_index", enrollment.LeafIndex),
	)
	s.metrics.ObserveEnrollment(start)
	s.logger.InfoContext(ctx, "member enrolled",
		"org_id", enrollment.OrgID.String(),
		"leaf_index", enrollment.LeafIndex,
	)
	return enrollment, nil
}

func (s *Service) enroll(ctx context.Context, req models.EnrollRequest) (*models.Enrollment, error) {
	newRoot, err := req.Validate()
	if err != nil {
		return nil, err
	}

	var enrollment *models.Enrollment
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.orgs.FindByDomain(txCtx, req.Domain)
		if err != nil {
			return translateOrgErr(err)
		}
		if err := s.members.LockLedger(txCtx, found.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock membership ledger")
		}
		// Re-read under the lock so PreviousRoot is the root this enrollment replaces.
		org, err := s.orgs.FindByID(txCtx, found.ID)
		if err != nil {
			return translateOrgErr(err)
		}

		latest, err := s.members.LatestLeafIndex(txCtx, org.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read membership ledger")
		}
		member := models.Member{
			OrgID:      org.ID,
			LeafIndex:  latest + 1,
			Commitment: append([]byte(nil), req.Commitment...),
			EnrolledAt: requestcontext.Now(txCtx),
		}
		if err := s.members.Insert(txCtx, member); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrConflict):
				return dErrors.Wrap(err, dErrors.CodeConflict, "leaf index already allocated")
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "organization not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append member")
		}

		transition := RootTransition{
			OrgID:        org.ID,
			LeafIndex:    member.LeafIndex,
			Commitment:   member.Commitment,
			PreviousRoot: org.TreeRootCurrent,
			NewRoot:      newRoot,
		}
		if err := s.validator.ValidateRoot(txCtx, transition); err != nil {
			var coded *dErrors.Error
			if errors.As(err, &coded) {
				return err
			}
			return dErrors.Wrap(err, dErrors.CodeValidation, "tree root rejected")
		}

		if err := s.orgs.UpdateTreeRoot(txCtx, org.ID, newRoot); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "organization not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to rotate tree root")
		}

		leaf := member.LeafIndex
		if s.auditPublisher != nil {
			if err := s.auditPublisher.Emit(txCtx, audit.Event{
				Action:    audit.ActionMemberEnrolled,
				OrgID:     org.ID,
				LeafIndex: &leaf,
			}); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
			}
		}

		enrollment = &models.Enrollment{OrgID: org.ID, LeafIndex: leaf, TreeRoot: newRoot}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

// ListMembers returns the organization's ledger in leaf order.
func (s *Service) ListMembers(ctx context.Context, orgID id.OrgID) ([]models.Member, error) {
	if _, err := s.orgs.FindByID(ctx, orgID); err != nil {
		return nil, translateOrgErr(err)
	}
	members, err := s.members.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list members")
	}
	return members, nil
}

func translateOrgErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "organization not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
}
