package httptransport

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"zkworkspace/internal/audit"
	membershipservice "zkworkspace/internal/membership/service"
	orgservice "zkworkspace/internal/org/service"
	"zkworkspace/internal/platform/metrics"
	"zkworkspace/internal/storage"
	"zkworkspace/internal/verification/dnscheck"
	verifyservice "zkworkspace/internal/verification/service"
	"zkworkspace/pkg/requestcontext"
	"zkworkspace/pkg/testutil"
)

type orgResponse struct {
	Org struct {
		ID               string   `json:"id"`
		Domain           string   `json:"domain"`
		TreeRootCurrent  string   `json:"tree_root_current"`
		TreeRootsHistory []string `json:"tree_roots_history"`
	} `json:"org"`
	DomainVerification *struct {
		Hostname string `json:"hostname"`
		Record   string `json:"record"`
		Token    string `json:"token"`
		Status   string `json:"status"`
	} `json:"domain_verification"`
}

type HandlerSuite struct {
	suite.Suite
	router http.Handler

	mu  sync.Mutex
	txt map[string]string
}

func (s *HandlerSuite) SetupTest() {
	s.txt = map[string]string{}
	mem := storage.NewMemory()
	publisher := audit.NewPublisher(mem.Outbox(), nil)
	resolver := dnscheck.ResolverFunc(func(_ context.Context, hostname string) ([][]string, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		value, ok := s.txt[hostname]
		if !ok {
			return nil, errors.New("NXDOMAIN")
		}
		return [][]string{{value}}, nil
	})

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	orgs := orgservice.New(mem.Orgs(), mem.Verifications(), mem,
		orgservice.WithAuditPublisher(publisher), orgservice.WithMetrics(m))
	verifier := verifyservice.New(mem.Verifications(), mem.Orgs(), dnscheck.NewChecker(resolver), mem,
		verifyservice.WithAuditPublisher(publisher), verifyservice.WithMetrics(m))
	ledger := membershipservice.New(mem.Members(), mem.Orgs(), mem,
		membershipservice.WithAuditPublisher(publisher), membershipservice.WithMetrics(m))

	s.router = NewRouter(NewHandler(orgs, verifier, ledger, nil), registry, nil)
}

func (s *HandlerSuite) publish(hostname, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txt[hostname] = value
}

func (s *HandlerSuite) createOrg(domain string) *orgResponse {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/orgs", map[string]any{
		"name":               "Acme",
		"domain":             domain,
		"verification_modes": []string{"zkEmail"},
	}))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return testutil.UnmarshalResponse[orgResponse](s.T(), rr)
}

func (s *HandlerSuite) TestHealth() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/health"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "ok")
}

func (s *HandlerSuite) TestCreateOrg() {
	s.Run("returns the org and its first challenge", func() {
		resp := s.createOrg("acme.com")
		s.Equal("acme.com", resp.Org.Domain)
		s.Equal(strings.Repeat("0", 64), resp.Org.TreeRootCurrent)
		s.Empty(resp.Org.TreeRootsHistory)
		s.Require().NotNil(resp.DomainVerification)
		s.Equal("_zk-workspace.acme.com", resp.DomainVerification.Hostname)
		s.Equal("zk-workspace-verification="+resp.DomainVerification.Token, resp.DomainVerification.Record)
		s.Equal("pending", resp.DomainVerification.Status)
	})

	s.Run("duplicate domain is a conflict", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/orgs", map[string]any{
			"name": "Again", "domain": "acme.com", "verification_modes": []string{"vc"},
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("non-hex root is rejected", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/orgs", map[string]any{
			"name": "Bad", "domain": "bad.com", "verification_modes": []string{"vc"}, "tree_root_current": "zz",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("unknown fields are rejected", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/orgs", `{"domain":"x.com","owner":"me"}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestGetOrg() {
	s.createOrg("acme.com")

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/orgs/acme.com"))
	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[orgResponse](s.T(), rr)
	s.Equal("acme.com", resp.Org.Domain)
	s.NotNil(resp.DomainVerification)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/orgs/missing.com"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *HandlerSuite) TestVerificationFlow() {
	org := s.createOrg("acme.com")
	base := "/orgs/" + org.Org.ID + "/verification"

	s.Run("check without a published record returns the expected challenge", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, base+"/check"))
		s.Equal(http.StatusConflict, rr.Code)
		resp := testutil.UnmarshalResponse[struct {
			Error    string `json:"error"`
			Expected struct {
				Hostname string `json:"hostname"`
				Record   string `json:"record"`
				Status   string `json:"status"`
			} `json:"expected"`
		}](s.T(), rr)
		s.Equal("txt_record_not_found", resp.Error)
		s.Equal("_zk-workspace.acme.com", resp.Expected.Hostname)
		s.Equal("pending", resp.Expected.Status)
	})

	s.Run("reissued challenge verifies once published", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, base+"/challenge"))
		s.Require().Equal(http.StatusCreated, rr.Code)
		challenge := testutil.UnmarshalResponse[struct {
			DomainVerification struct {
				Hostname string `json:"hostname"`
				Record   string `json:"record"`
			} `json:"domain_verification"`
		}](s.T(), rr)
		s.publish(challenge.DomainVerification.Hostname, challenge.DomainVerification.Record)

		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, base+"/check"))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[struct {
			DomainVerification struct {
				Status     string  `json:"status"`
				VerifiedAt *string `json:"verified_at"`
			} `json:"domain_verification"`
		}](s.T(), rr)
		s.Equal("verified", resp.DomainVerification.Status)
		s.NotNil(resp.DomainVerification.VerifiedAt)
	})

	s.Run("malformed org id is a validation error", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/orgs/not-a-uuid/verification/check"))
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func (s *HandlerSuite) TestEnrollAndList() {
	org := s.createOrg("acme.com")

	for i, root := range []string{strings.Repeat("11", 32), strings.Repeat("22", 32)} {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/enrollments", map[string]string{
			"domain":            "acme.com",
			"member_commitment": strings.Repeat("ab", 32),
			"new_tree_root":     root,
		}))
		s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
		testutil.AssertJSONContains(s.T(), rr, "leaf_index", float64(i))
	}

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/orgs/acme.com"))
	resp := testutil.UnmarshalResponse[orgResponse](s.T(), rr)
	s.Equal(strings.Repeat("22", 32), resp.Org.TreeRootCurrent)
	s.Equal([]string{strings.Repeat("11", 32), strings.Repeat("00", 32)}, resp.Org.TreeRootsHistory)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/orgs/"+org.Org.ID+"/members"))
	testutil.AssertStatusOK(s.T(), rr)
	members := testutil.UnmarshalResponse[struct {
		Members []struct {
			LeafIndex  int64  `json:"leaf_index"`
			Commitment string `json:"commitment"`
		} `json:"members"`
	}](s.T(), rr)
	s.Require().Len(members.Members, 2)
	s.Equal(int64(0), members.Members[0].LeafIndex)
	s.Equal(int64(1), members.Members[1].LeafIndex)
	s.Equal(strings.Repeat("ab", 32), members.Members[0].Commitment)
}

func (s *HandlerSuite) TestEnrollErrors() {
	s.createOrg("acme.com")

	tests := []struct {
		name   string
		body   map[string]string
		status int
		code   string
	}{
		{
			name:   "unknown domain",
			body:   map[string]string{"domain": "nope.com", "member_commitment": "ab", "new_tree_root": strings.Repeat("22", 32)},
			status: http.StatusNotFound,
			code:   "not_found",
		},
		{
			name:   "short root",
			body:   map[string]string{"domain": "acme.com", "member_commitment": "ab", "new_tree_root": "22"},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name:   "non-hex commitment",
			body:   map[string]string{"domain": "acme.com", "member_commitment": "xyz", "new_tree_root": strings.Repeat("22", 32)},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/enrollments", tt.body))
			testutil.AssertStatusAndError(s.T(), rr, tt.status, tt.code)
		})
	}
}

func (s *HandlerSuite) TestMetricsEndpoint() {
	s.createOrg("acme.com")
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(s.T(), rr)
	s.Contains(rr.Body.String(), "zkw_orgs_created_total")
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func TestRequestContextMiddleware(t *testing.T) {
	var gotID string
	h := chimw.RequestID(RequestContext(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotID = requestcontext.RequestID(r.Context())
	})))
	req := testutil.NewRequest(t, http.MethodGet, "/health")
	req.Header.Set(chimw.RequestIDHeader, "abc")
	rr := testutil.DoRequest(h, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc", gotID)
}
