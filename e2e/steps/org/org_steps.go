package org

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
	SetOrgID(orgID string)
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &orgSteps{tc: tc}
	ctx.Step(`^I create an organization with modes "([^"]*)"$`, steps.createOrg)
	ctx.Step(`^I create the same organization again$`, steps.createOrgAgain)
	ctx.Step(`^I look up the organization by domain$`, steps.lookupOrg)
	ctx.Step(`^the challenge hostname should be under the organization domain$`, steps.challengeHostnameMatches)
	ctx.Step(`^the challenge status should be "([^"]*)"$`, steps.challengeStatusShouldBe)
	ctx.Step(`^I check domain ownership$`, steps.checkOwnership)
	ctx.Step(`^the current tree root should be "([^"]*)" repeated$`, steps.currentRootShouldBe)
	ctx.Step(`^the root history should have (\d+) entries$`, steps.historyShouldHave)
}

type orgSteps struct {
	tc    TestContext
	modes []string
}

type orgView struct {
	Org struct {
		ID               string   `json:"id"`
		TreeRootCurrent  string   `json:"tree_root_current"`
		TreeRootsHistory []string `json:"tree_roots_history"`
	} `json:"org"`
	DomainVerification *struct {
		Hostname string `json:"hostname"`
		Status   string `json:"status"`
	} `json:"domain_verification"`
}

func (s *orgSteps) createOrg(ctx context.Context, modes string) error {
	s.modes = strings.Split(modes, ",")
	if err := s.tc.POST(ctx, "/orgs", map[string]any{
		"name":               "E2E Org",
		"domain":             s.tc.DomainName(),
		"verification_modes": s.modes,
	}); err != nil {
		return err
	}
	if s.tc.Status() != 201 {
		return fmt.Errorf("create organization: status %d", s.tc.Status())
	}
	var view orgView
	if err := s.tc.Decode(&view); err != nil {
		return err
	}
	s.tc.SetOrgID(view.Org.ID)
	return nil
}

func (s *orgSteps) createOrgAgain(ctx context.Context) error {
	return s.tc.POST(ctx, "/orgs", map[string]any{
		"name":               "E2E Org",
		"domain":             s.tc.DomainName(),
		"verification_modes": s.modes,
	})
}

func (s *orgSteps) lookupOrg(ctx context.Context) error {
	return s.tc.GET(ctx, "/orgs/"+s.tc.DomainName())
}

func (s *orgSteps) view() (*orgView, error) {
	var view orgView
	if err := s.tc.Decode(&view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *orgSteps) challengeHostnameMatches() error {
	view, err := s.view()
	if err != nil {
		return err
	}
	if view.DomainVerification == nil {
		return fmt.Errorf("no domain_verification in response")
	}
	if want := "_zk-workspace." + s.tc.DomainName(); view.DomainVerification.Hostname != want {
		return fmt.Errorf("expected hostname %q, got %q", want, view.DomainVerification.Hostname)
	}
	return nil
}

func (s *orgSteps) challengeStatusShouldBe(status string) error {
	var body struct {
		DomainVerification *struct {
			Status string `json:"status"`
		} `json:"domain_verification"`
		Expected *struct {
			Status string `json:"status"`
		} `json:"expected"`
	}
	if err := s.tc.Decode(&body); err != nil {
		return err
	}
	got := ""
	switch {
	case body.DomainVerification != nil:
		got = body.DomainVerification.Status
	case body.Expected != nil:
		got = body.Expected.Status
	}
	if got != status {
		return fmt.Errorf("expected challenge status %q, got %q", status, got)
	}
	return nil
}

func (s *orgSteps) checkOwnership(ctx context.Context) error {
	return s.tc.POST(ctx, "/orgs/"+s.tc.CurrentOrgID()+"/verification/check", nil)
}

func (s *orgSteps) currentRootShouldBe(pair string) error {
	view, err := s.view()
	if err != nil {
		return err
	}
	if want := strings.Repeat(pair, 32); view.Org.TreeRootCurrent != want {
		return fmt.Errorf("expected root %s, got %s", want, view.Org.TreeRootCurrent)
	}
	return nil
}

func (s *orgSteps) historyShouldHave(n int) error {
	view, err := s.view()
	if err != nil {
		return err
	}
	if len(view.Org.TreeRootsHistory) != n {
		return fmt.Errorf("expected %d history entries, got %d", n, len(view.Org.TreeRootsHistory))
	}
	return nil
}
