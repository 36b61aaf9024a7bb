package dnscheck

//go:generate mockgen -source=dnscheck.go -destination=mocks/mocks.go -package=mocks Resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"zkworkspace/internal/verification/dnscheck/mocks"
)

const token = "abcdef123456"

func TestVerifyDomainTXTRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("matches expected value among other answers", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		resolver := mocks.NewMockResolver(ctrl)
		resolver.EXPECT().LookupTXT(gomock.Any(), "_zk-workspace.example.com").Return([][]string{
			{"some other value"},
			{"  "},
			{"zk-workspace-verification=" + token},
		}, nil)

		assert.True(t, VerifyDomainTXTRecord(ctx, "example.com", token, resolver))
	})

	t.Run("flattens segments and trims whitespace", func(t *testing.T) {
		resolver := ResolverFunc(func(context.Context, string) ([][]string, error) {
			return [][]string{{"v=spf1 -all", "  zk-workspace-verification=" + token + "\t"}}, nil
		})
		assert.True(t, VerifyDomainTXTRecord(ctx, "example.com", token, resolver))
	})

	t.Run("resolver error is not verified", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		resolver := mocks.NewMockResolver(ctrl)
		resolver.EXPECT().LookupTXT(gomock.Any(), gomock.Any()).Return(nil, errors.New("lookup failed"))

		assert.False(t, VerifyDomainTXTRecord(ctx, "example.com", token, resolver))
	})

	t.Run("records present but none match", func(t *testing.T) {
		resolver := ResolverFunc(func(context.Context, string) ([][]string, error) {
			return [][]string{{"nope"}}, nil
		})
		assert.False(t, VerifyDomainTXTRecord(ctx, "example.com", token, resolver))
	})

	t.Run("record for a different token", func(t *testing.T) {
		resolver := ResolverFunc(func(context.Context, string) ([][]string, error) {
			return [][]string{{"zk-workspace-verification=ffffffff"}}, nil
		})
		assert.False(t, VerifyDomainTXTRecord(ctx, "example.com", token, resolver))
	})

	t.Run("comparison is case sensitive", func(t *testing.T) {
		resolver := ResolverFunc(func(context.Context, string) ([][]string, error) {
			return [][]string{{"ZK-WORKSPACE-VERIFICATION=" + token}}, nil
		})
		assert.False(t, VerifyDomainTXTRecord(ctx, "example.com", token, resolver))
	})

	t.Run("a value split across segments does not match", func(t *testing.T) {
		resolver := ResolverFunc(func(context.Context, string) ([][]string, error) {
			return [][]string{{"zk-workspace-verification=", token}}, nil
		})
		assert.False(t, VerifyDomainTXTRecord(ctx, "example.com", token, resolver))
	})
}

func TestChecker_TimesOutHungResolver(t *testing.T) {
	resolver := ResolverFunc(func(ctx context.Context, _ string) ([][]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	checker := NewChecker(resolver, WithTimeout(20*time.Millisecond))

	start := time.Now()
	ok := checker.Check(context.Background(), "example.com", token)

	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestChecker_Verified(t *testing.T) {
	resolver := ResolverFunc(func(context.Context, string) ([][]string, error) {
		return [][]string{{"zk-workspace-verification=" + token}}, nil
	})
	assert.True(t, NewChecker(resolver).Check(context.Background(), "example.com", token))
}
