package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"zkworkspace/internal/audit"
	orgmodels "zkworkspace/internal/org/models"
	"zkworkspace/internal/storage"
	"zkworkspace/internal/verification/dnscheck"
	"zkworkspace/internal/verification/dnscheck/mocks"
	"zkworkspace/internal/verification/models"
	"zkworkspace/internal/verification/throttle"
	id "zkworkspace/pkg/domain"
	dErrors "zkworkspace/pkg/domain-errors"
	"zkworkspace/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	resolver *mocks.MockResolver
	mem      *storage.Memory
	service  *Service
	org      *orgmodels.Organization
	ctx      context.Context
	now      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.resolver = mocks.NewMockResolver(s.ctrl)
	s.mem = storage.NewMemory()
	s.now = time.Date(2026, 3, 1, 11, 30, 45, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	org, err := orgmodels.NewOrganization(id.NewOrgID(), "Acme", "acme.com", nil, orgmodels.TreeRoot{}, nil, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.mem.Orgs().Create(s.ctx, org))
	s.org = org

	s.service = s.newService()
}

func (s *ServiceSuite) newService(opts ...Option) *Service {
	opts = append([]Option{WithAuditPublisher(audit.NewPublisher(s.mem.Outbox(), nil))}, opts...)
	return New(s.mem.Verifications(), s.mem.Orgs(), dnscheck.NewChecker(s.resolver), s.mem, opts...)
}

func (s *ServiceSuite) publish(values ...string) {
	answers := make([][]string, len(values))
	for i, v := range values {
		answers[i] = []string{v}
	}
	s.resolver.EXPECT().LookupTXT(gomock.Any(), "_zk-workspace.acme.com").Return(answers, nil)
}

func (s *ServiceSuite) outboxActions() []audit.Action {
	entries, err := s.mem.Outbox().FetchUnpublished(context.Background(), 0)
	s.Require().NoError(err)
	actions := make([]audit.Action, len(entries))
	for i, e := range entries {
		actions[i] = e.Event.Action
	}
	return actions
}

func (s *ServiceSuite) TestRequestChallenge() {
	first, err := s.service.RequestChallenge(s.ctx, s.org.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, first.Status)
	s.Equal("_zk-workspace.acme.com", first.Hostname)
	s.Equal("zk-workspace-verification="+first.Token, first.Record)
	s.Len(first.Token, 32)

	second, err := s.service.RequestChallenge(s.ctx, s.org.ID)
	s.Require().NoError(err)
	s.NotEqual(first.Token, second.Token, "each issuance draws a fresh token")

	current, err := s.service.GetChallenge(s.ctx, s.org.ID)
	s.Require().NoError(err)
	s.Equal(second.Token, current.Token)

	s.Equal([]audit.Action{audit.ActionDomainChallengeIssued, audit.ActionDomainChallengeIssued}, s.outboxActions())
}

func (s *ServiceSuite) TestRequestChallengeUnknownOrg() {
	_, err := s.service.RequestChallenge(s.ctx, id.NewOrgID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestGetChallengeNeverIssued() {
	_, err := s.service.GetChallenge(s.ctx, s.org.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestCheckOwnership() {
	s.Run("missing record returns the expected challenge", func() {
		challenge, err := s.service.RequestChallenge(s.ctx, s.org.ID)
		s.Require().NoError(err)
		s.publish("unrelated")

		result, err := s.service.CheckOwnership(s.ctx, s.org.ID)
		s.Require().NoError(err)
		s.False(result.Verified)
		s.Equal(*challenge, result.Challenge)

		rec, err := s.mem.Verifications().FindByOrgID(s.ctx, s.org.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, rec.Status)
	})

	s.Run("published record verifies the domain", func() {
		challenge, err := s.service.GetChallenge(s.ctx, s.org.ID)
		s.Require().NoError(err)
		s.publish("v=spf1 -all", challenge.Record)

		result, err := s.service.CheckOwnership(s.ctx, s.org.ID)
		s.Require().NoError(err)
		s.True(result.Verified)
		s.Equal(models.StatusVerified, result.Challenge.Status)
		s.Require().NotNil(result.Challenge.VerifiedAt)
		s.Equal("2026-03-01T11:30:45.000Z", *result.Challenge.VerifiedAt)
		s.Contains(s.outboxActions(), audit.ActionDomainVerified)
	})

	s.Run("reissue resets to pending", func() {
		_, err := s.service.RequestChallenge(s.ctx, s.org.ID)
		s.Require().NoError(err)
		current, err := s.service.GetChallenge(s.ctx, s.org.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, current.Status)
		s.Nil(current.VerifiedAt)
	})
}

func (s *ServiceSuite) TestCheckOwnershipResolverFailureIsNotVerified() {
	_, err := s.service.RequestChallenge(s.ctx, s.org.ID)
	s.Require().NoError(err)
	s.resolver.EXPECT().LookupTXT(gomock.Any(), gomock.Any()).Return(nil, errors.New("SERVFAIL"))

	result, err := s.service.CheckOwnership(s.ctx, s.org.ID)
	s.Require().NoError(err)
	s.False(result.Verified)
}

func (s *ServiceSuite) TestCheckOwnershipNeverIssued() {
	_, err := s.service.CheckOwnership(s.ctx, s.org.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestCheckOwnershipIgnoresTokenReissuedDuringLookup() {
	_, err := s.service.RequestChallenge(s.ctx, s.org.ID)
	s.Require().NoError(err)
	old, err := s.service.GetChallenge(s.ctx, s.org.ID)
	s.Require().NoError(err)

	s.resolver.EXPECT().LookupTXT(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string) ([][]string, error) {
			_, err := s.mem.Verifications().Issue(ctx, s.org.ID, "fresh-token")
			s.Require().NoError(err)
			return [][]string{{old.Record}}, nil
		})

	result, err := s.service.CheckOwnership(s.ctx, s.org.ID)
	s.Require().NoError(err)
	s.False(result.Verified)
	s.Equal("fresh-token", result.Challenge.Token)

	rec, err := s.mem.Verifications().FindByOrgID(s.ctx, s.org.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, rec.Status)
}

func (s *ServiceSuite) TestCheckOwnershipThrottled() {
	svc := s.newService(WithThrottle(throttle.NewMemory(time.Minute)))
	_, err := svc.RequestChallenge(s.ctx, s.org.ID)
	s.Require().NoError(err)
	s.publish("nothing yet")

	_, err = svc.CheckOwnership(s.ctx, s.org.ID)
	s.Require().NoError(err)

	// The second call must not reach the resolver.
	_, err = svc.CheckOwnership(s.ctx, s.org.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))
}

type brokenThrottle struct{}

func (brokenThrottle) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func (s *ServiceSuite) TestCheckOwnershipThrottleOutageFailsOpen() {
	svc := s.newService(WithThrottle(brokenThrottle{}))
	_, err := svc.RequestChallenge(s.ctx, s.org.ID)
	s.Require().NoError(err)
	s.publish("nothing yet")

	result, err := svc.CheckOwnership(s.ctx, s.org.ID)
	s.Require().NoError(err)
	s.False(result.Verified)
}
