package membership

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

type TestContext interface {
	POST(ctx context.Context, path string, body any) error
	GET(ctx context.Context, path string) error
	Status() int
	Decode(v any) error
	DomainName() string
	CurrentOrgID() string
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &membershipSteps{tc: tc}
	ctx.Step(`^a member enrolls with commitment "([^"]*)" and new root "([^"]*)" repeated$`, steps.enroll)
	ctx.Step(`^a member enrolls at an unknown domain$`, steps.enrollUnknownDomain)
	ctx.Step(`^the assigned leaf index should be (\d+)$`, steps.leafIndexShouldBe)
	ctx.Step(`^I list the organization members$`, steps.listMembers)
	ctx.Step(`^the ledger should hold leaves (\d+) through (\d+)$`, steps.ledgerShouldHold)
}

type membershipSteps struct {
	tc TestContext
}

func (s *membershipSteps) enroll(ctx context.Context, commitment, rootPair string) error {
	return s.tc.POST(ctx, "/enrollments", map[string]string{
		"domain":            s.tc.DomainName(),
		"member_commitment": commitment,
		"new_tree_root":     strings.Repeat(rootPair, 32),
	})
}

func (s *membershipSteps) enrollUnknownDomain(ctx context.Context) error {
	return s.tc.POST(ctx, "/enrollments", map[string]string{
		"domain":            "unknown-" + s.tc.DomainName(),
		"member_commitment": "aa",
		"new_tree_root":     strings.Repeat("00", 32),
	})
}

func (s *membershipSteps) leafIndexShouldBe(want int64) error {
	var body struct {
		LeafIndex *int64 `json:"leaf_index"`
	}
	if err := s.tc.Decode(&body); err != nil {
		return err
	}
	if body.LeafIndex == nil || *body.LeafIndex != want {
		return fmt.Errorf("expected leaf index %d, got %v", want, body.LeafIndex)
	}
	return nil
}

func (s *membershipSteps) listMembers(ctx context.Context) error {
	return s.tc.GET(ctx, "/orgs/"+s.tc.CurrentOrgID()+"/members")
}

func (s *membershipSteps) ledgerShouldHold(from, to int64) error {
	var body struct {
		Members []struct {
			LeafIndex int64 `json:"leaf_index"`
		} `json:"members"`
	}
	if err := s.tc.Decode(&body); err != nil {
		return err
	}
	if int64(len(body.Members)) != to-from+1 {
		return fmt.Errorf("expected %d members, got %d", to-from+1, len(body.Members))
	}
	for i, m := range body.Members {
		if m.LeafIndex != from+int64(i) {
			return fmt.Errorf("member %d has leaf index %d", i, m.LeafIndex)
		}
	}
	return nil
}
