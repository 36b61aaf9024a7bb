package dnscheck

import (
	"context"
	"net"
	"time"
)

// NetResolver resolves TXT records through the Go resolver.
//
// net.Resolver already joins the character-string segments of one TXT record into a
// single string, so each answer is returned as a one-segment list.
type NetResolver struct {
	resolver *net.Resolver
}

// NewNetResolver uses the system resolver, or server (host:port) when non-empty.
func NewNetResolver(server string) *NetResolver {
	if server == "" {
		return &NetResolver{resolver: net.DefaultResolver}
	}
	dialer := &net.Dialer{Timeout: 2 * time.Second}
	return &NetResolver{resolver: &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, server)
		},
	}}
}

func (r *NetResolver) LookupTXT(ctx context.Context, hostname string) ([][]string, error) {
	records, err := r.resolver.LookupTXT(ctx, hostname)
	if err != nil {
		return nil, err
	}
	answers := make([][]string, len(records))
	for i, rec := range records {
		answers[i] = []string{rec}
	}
	return answers, nil
}
