package httptransport

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	mmodels "zkworkspace/internal/membership/models"
	orgservice "zkworkspace/internal/org/service"
	vmodels "zkworkspace/internal/verification/models"
	verifyservice "zkworkspace/internal/verification/service"
	id "zkworkspace/pkg/domain"
	dErrors "zkworkspace/pkg/domain-errors"
	"zkworkspace/pkg/platform/httputil"
)

type OrgService interface {
	CreateOrg(ctx context.Context, req orgservice.CreateOrgRequest) (*orgservice.OrgView, error)
	GetByDomain(ctx context.Context, domain string) (*orgservice.OrgView, error)
}

type VerificationService interface {
	RequestChallenge(ctx context.Context, orgID id.OrgID) (*vmodels.Challenge, error)
	CheckOwnership(ctx context.Context, orgID id.OrgID) (*verifyservice.CheckResult, error)
}

type MembershipService interface {
	Enroll(ctx context.Context, req mmodels.EnrollRequest) (*mmodels.Enrollment, error)
	ListMembers(ctx context.Context, orgID id.OrgID) ([]mmodels.Member, error)
}

// Handler is the thin HTTP layer over the organization, verification and
// membership services.
type Handler struct {
	orgs         OrgService
	verification VerificationService
	membership   MembershipService
	logger       *slog.Logger
}

func NewHandler(orgs OrgService, verification VerificationService, membership MembershipService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{orgs: orgs, verification: verification, membership: membership, logger: logger}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/orgs", h.handleCreateOrg)
	r.Get("/orgs/{domain}", h.handleGetOrg)
	r.Post("/orgs/{orgID}/verification/challenge", h.handleRequestChallenge)
	r.Post("/orgs/{orgID}/verification/check", h.handleCheckOwnership)
	r.Get("/orgs/{orgID}/members", h.handleListMembers)
	r.Post("/enrollments", h.handleEnroll)
}

// writeError logs server-side failures and writes the coded error.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	httputil.WriteError(w, err)
}

func orgIDParam(r *http.Request) (id.OrgID, error) {
	return id.ParseOrgID(chi.URLParam(r, "orgID"))
}

func decodeHex(field, value string) ([]byte, error) {
	b, err := hex.DecodeString(value)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, field+" must be hex encoded")
	}
	return b, nil
}
