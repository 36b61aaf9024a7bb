package e2e

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext carries per-scenario state: the last response and the
// organization created by the scenario.
type TestContext struct {
	BaseURL string
	client  *http.Client

	status int
	body   []byte

	Domain string
	OrgID  string
}

func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Reset clears state between scenarios and picks a domain no earlier run used.
func (tc *TestContext) Reset() {
	tc.status = 0
	tc.body = nil
	tc.OrgID = ""
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	tc.Domain = "e2e-" + hex.EncodeToString(suffix) + ".test"
}

func (tc *TestContext) do(ctx context.Context, method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.status = resp.StatusCode
	tc.body, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) POST(ctx context.Context, path string, body any) error {
	return tc.do(ctx, http.MethodPost, path, body)
}

func (tc *TestContext) GET(ctx context.Context, path string) error {
	return tc.do(ctx, http.MethodGet, path, nil)
}

func (tc *TestContext) Status() int { return tc.status }

// Decode unmarshals the last response body into v.
func (tc *TestContext) Decode(v any) error {
	if err := json.Unmarshal(tc.body, v); err != nil {
		return fmt.Errorf("decode response %q: %w", tc.body, err)
	}
	return nil
}

func (tc *TestContext) DomainName() string { return tc.Domain }
func (tc *TestContext) CurrentOrgID() string { return tc.OrgID }
func (tc *TestContext) SetOrgID(orgID string) { tc.OrgID = orgID }
