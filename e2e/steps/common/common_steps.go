package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

type TestContext interface {
	GET(ctx context.Context, path string) error
	Status() int
	Decode(v any) error
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}
	ctx.Step(`^the service is healthy$`, steps.serviceIsHealthy)
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the error code should be "([^"]*)"$`, steps.errorCodeShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serviceIsHealthy(ctx context.Context) error {
	if err := s.tc.GET(ctx, "/health"); err != nil {
		return err
	}
	return s.responseStatusShouldBe(200)
}

func (s *commonSteps) responseStatusShouldBe(status int) error {
	if s.tc.Status() != status {
		return fmt.Errorf("expected status %d, got %d", status, s.tc.Status())
	}
	return nil
}

func (s *commonSteps) errorCodeShouldBe(code string) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := s.tc.Decode(&body); err != nil {
		return err
	}
	if body.Error != code {
		return fmt.Errorf("expected error %q, got %q", code, body.Error)
	}
	return nil
}
