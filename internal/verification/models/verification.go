package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	id "zkworkspace/pkg/domain"
)

// Wire contract for the DNS challenge. A client must be able to reproduce the
// hostname and expected value from the domain and token alone.
const (
	TXTHostPrefix  = "_zk-workspace"
	TXTValuePrefix = "zk-workspace-verification="
)

// TokenBytes is the amount of randomness in a challenge token (hex encodes to 32 chars).
const TokenBytes = 16

// Status of a domain ownership challenge.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
)

// Record is the single domain verification row of an organization.
//
// Lifecycle: issuing a challenge (re)writes the row as pending with a fresh token and
// no VerifiedAt. The only transition is pending -> verified, applied after a
// successful TXT lookup for the current token. A new issuance starts over.
type Record struct {
	OrgID      id.OrgID   `json:"org_id"`
	Token      string     `json:"token"`
	Status     Status     `json:"status"`
	VerifiedAt *time.Time `json:"verified_at"`
}

func (r *Record) IsVerified() bool {
	return r.Status == StatusVerified
}

// NewPendingRecord returns the row written by a challenge issuance.
func NewPendingRecord(orgID id.OrgID, token string) *Record {
	return &Record{OrgID: orgID, Token: token, Status: StatusPending}
}

// ApplyVerified transitions the record to verified at now.
func (r *Record) ApplyVerified(now time.Time) {
	r.Status = StatusVerified
	r.VerifiedAt = &now
}

// NewToken returns TokenBytes of crypto randomness, hex encoded.
func NewToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate challenge token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Hostname is where the organization must publish its TXT record.
func Hostname(domain string) string {
	return TXTHostPrefix + "." + domain
}

// ExpectedValue is the exact TXT value that proves ownership for token.
func ExpectedValue(token string) string {
	return TXTValuePrefix + token
}

// Challenge is the presentation of a record for DNS setup instructions.
type Challenge struct {
	Status     Status  `json:"status"`
	Hostname   string  `json:"hostname"`
	Record     string  `json:"record"`
	Token      string  `json:"token"`
	VerifiedAt *string `json:"verified_at"`
}

// isoMillis matches the millisecond ISO-8601 form clients already parse.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// BuildChallenge derives the presentation of rec for domain. It has no side effects.
func BuildChallenge(domain string, rec Record) Challenge {
	c := Challenge{
		Status:   rec.Status,
		Hostname: Hostname(domain),
		Record:   ExpectedValue(rec.Token),
		Token:    rec.Token,
	}
	if rec.VerifiedAt != nil {
		s := rec.VerifiedAt.UTC().Format(isoMillis)
		c.VerifiedAt = &s
	}
	return c
}
