// Package dnscheck answers whether a domain publishes the TXT record for a challenge
// token. It never persists anything and never returns an error: any resolver
// failure reads as "not verified".
package dnscheck

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"zkworkspace/internal/verification/models"
)

// DefaultTimeout bounds a single TXT lookup.
const DefaultTimeout = 5 * time.Second

// Resolver looks up TXT answers for hostname. Each answer is a list of character
// string segments.
type Resolver interface {
	LookupTXT(ctx context.Context, hostname string) ([][]string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, hostname string) ([][]string, error)

func (f ResolverFunc) LookupTXT(ctx context.Context, hostname string) ([][]string, error) {
	return f(ctx, hostname)
}

// VerifyDomainTXTRecord resolves TXT records at the challenge hostname of domain and
// reports whether any trimmed segment equals the expected value for token exactly.
func VerifyDomainTXTRecord(ctx context.Context, domain, token string, resolver Resolver) bool {
	answers, err := resolver.LookupTXT(ctx, models.Hostname(domain))
	if err != nil {
		return false
	}
	expected := models.ExpectedValue(token)
	for _, answer := range answers {
		for _, segment := range answer {
			if strings.TrimSpace(segment) == expected {
				return true
			}
		}
	}
	return false
}

// Checker bounds VerifyDomainTXTRecord with a timeout and records a span.
type Checker struct {
	resolver Resolver
	timeout  time.Duration
	logger   *slog.Logger
}

type Option func(*Checker)

func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

func NewChecker(resolver Resolver, opts ...Option) *Checker {
	c := &Checker{resolver: resolver, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check reports whether domain publishes the challenge for token.
func (c *Checker) Check(ctx context.Context, domain, token string) bool {
	ctx, span := otel.Tracer("zkworkspace/verification").Start(ctx, "dnscheck.Check")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ok := VerifyDomainTXTRecord(ctx, domain, token, loggingResolver{c.resolver, c.logger})
	span.SetAttributes(
		attribute.String("dns.hostname", models.Hostname(domain)),
		attribute.Bool("dns.verified", ok),
	)
	return ok
}

// loggingResolver surfaces lookup failures in logs, since they are swallowed above.
type loggingResolver struct {
	next   Resolver
	logger *slog.Logger
}

func (r loggingResolver) LookupTXT(ctx context.Context, hostname string) ([][]string, error) {
	answers, err := r.next.LookupTXT(ctx, hostname)
	if err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "txt lookup failed",
			"hostname", hostname,
			"error", err.Error(),
		)
	}
	return answers, err
}
