package e2e

import (
	"github.com/cucumber/godog"

	"zkworkspace/e2e/steps/common"
	"zkworkspace/e2e/steps/membership"
	"zkworkspace/e2e/steps/org"
)

// RegisterSteps registers the step definitions of every feature area.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	org.RegisterSteps(ctx, tc)
	membership.RegisterSteps(ctx, tc)
}
