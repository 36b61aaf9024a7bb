package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"zkworkspace/internal/audit"
	mmodels "zkworkspace/internal/membership/models"
	orgmodels "zkworkspace/internal/org/models"
	vmodels "zkworkspace/internal/verification/models"
	id "zkworkspace/pkg/domain"
	dErrors "zkworkspace/pkg/domain-errors"
	"zkworkspace/pkg/platform/sentinel"
	"zkworkspace/pkg/platform/tx"
)

// ErrNoTransaction is returned by operations that are only meaningful inside a
// unit of work, such as taking the ledger lock.
var ErrNoTransaction = errors.New("operation requires a transaction")

// Memory is an in-process backend for all stores. It keeps the same transactional
// contract as Postgres: a unit of work sees its own writes, other readers see only
// committed state, and an error from the unit of work discards every write in it.
//
// Units of work are serialized by a single writer lock. Each one runs against a
// private copy of the committed state, which replaces the committed state on success.
type Memory struct {
	writer    sync.Mutex
	mu        sync.RWMutex
	committed *memState
	timeout   time.Duration
}

var _ tx.Runner = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{committed: newMemState(), timeout: tx.DefaultTimeout}
}

type memState struct {
	orgs          map[id.OrgID]orgmodels.Organization
	domains       map[string]id.OrgID
	verifications map[id.OrgID]vmodels.Record
	members       map[id.OrgID][]mmodels.Member
	outbox        []memOutboxEntry
	outboxSeq     int64
}

type memOutboxEntry struct {
	entry     audit.OutboxEntry
	published bool
}

func newMemState() *memState {
	return &memState{
		orgs:          make(map[id.OrgID]orgmodels.Organization),
		domains:       make(map[string]id.OrgID),
		verifications: make(map[id.OrgID]vmodels.Record),
		members:       make(map[id.OrgID][]mmodels.Member),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		orgs:          make(map[id.OrgID]orgmodels.Organization, len(s.orgs)),
		domains:       make(map[string]id.OrgID, len(s.domains)),
		verifications: make(map[id.OrgID]vmodels.Record, len(s.verifications)),
		members:       make(map[id.OrgID][]mmodels.Member, len(s.members)),
		outbox:        append([]memOutboxEntry(nil), s.outbox...),
		outboxSeq:     s.outboxSeq,
	}
	for k, v := range s.orgs {
		c.orgs[k] = v
	}
	for k, v := range s.domains {
		c.domains[k] = v
	}
	for k, v := range s.verifications {
		c.verifications[k] = v
	}
	for k, v := range s.members {
		c.members[k] = append([]mmodels.Member(nil), v...)
	}
	return c
}

type memTxKey struct{}

type memTx struct {
	owner *Memory
	state *memState
}

// RunInTx runs fn as one unit of work.
func (m *Memory) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, ok := m.txState(ctx); ok {
		return fn(ctx)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.writer.Lock()
	defer m.writer.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	work := m.snapshot().clone()
	if err := fn(context.WithValue(ctx, memTxKey{}, memTx{owner: m, state: work})); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted before commit")
	}

	m.mu.Lock()
	m.committed = work
	m.mu.Unlock()
	return nil
}

func (m *Memory) txState(ctx context.Context) (*memState, bool) {
	t, ok := ctx.Value(memTxKey{}).(memTx)
	if !ok || t.owner != m {
		return nil, false
	}
	return t.state, true
}

// snapshot returns the committed state. Committed state is never mutated in place,
// so the pointer stays valid after the lock is released.
func (m *Memory) snapshot() *memState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed
}

func (m *Memory) read(ctx context.Context) *memState {
	if s, ok := m.txState(ctx); ok {
		return s
	}
	return m.snapshot()
}

func (m *Memory) write(ctx context.Context, fn func(s *memState) error) error {
	if s, ok := m.txState(ctx); ok {
		return fn(s)
	}
	return m.RunInTx(ctx, func(txCtx context.Context) error {
		s, _ := m.txState(txCtx)
		return fn(s)
	})
}

// Orgs returns the organization store view.
func (m *Memory) Orgs() *InMemoryOrgStore { return &InMemoryOrgStore{m: m} }

// Verifications returns the domain verification store view.
func (m *Memory) Verifications() *InMemoryVerificationStore {
	return &InMemoryVerificationStore{m: m}
}

// Members returns the membership ledger store view.
func (m *Memory) Members() *InMemoryMemberStore { return &InMemoryMemberStore{m: m} }

// Outbox returns the audit outbox view.
func (m *Memory) Outbox() *InMemoryOutbox { return &InMemoryOutbox{m: m} }

type InMemoryOrgStore struct {
	m *Memory
}

func copyOrg(o orgmodels.Organization) *orgmodels.Organization {
	o.TreeRootsHistory = append([]orgmodels.TreeRoot{}, o.TreeRootsHistory...)
	o.VerificationModes = append([]orgmodels.VerificationMode{}, o.VerificationModes...)
	return &o
}

func (s *InMemoryOrgStore) Create(ctx context.Context, org *orgmodels.Organization) error {
	return s.m.write(ctx, func(st *memState) error {
		if _, ok := st.domains[org.Domain]; ok {
			return sentinel.ErrConflict
		}
		if _, ok := st.orgs[org.ID]; ok {
			return sentinel.ErrConflict
		}
		st.orgs[org.ID] = *copyOrg(*org)
		st.domains[org.Domain] = org.ID
		return nil
	})
}

func (s *InMemoryOrgStore) FindByID(ctx context.Context, orgID id.OrgID) (*orgmodels.Organization, error) {
	st := s.m.read(ctx)
	org, ok := st.orgs[orgID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyOrg(org), nil
}

func (s *InMemoryOrgStore) FindByDomain(ctx context.Context, domain string) (*orgmodels.Organization, error) {
	st := s.m.read(ctx)
	orgID, ok := st.domains[domain]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyOrg(st.orgs[orgID]), nil
}

func (s *InMemoryOrgStore) UpdateTreeRoot(ctx context.Context, orgID id.OrgID, root orgmodels.TreeRoot) error {
	return s.m.write(ctx, func(st *memState) error {
		org, ok := st.orgs[orgID]
		if !ok {
			return sentinel.ErrNotFound
		}
		org.RotateRoot(root)
		st.orgs[orgID] = org
		return nil
	})
}

type InMemoryVerificationStore struct {
	m *Memory
}

func (s *InMemoryVerificationStore) Issue(ctx context.Context, orgID id.OrgID, token string) (*vmodels.Record, error) {
	var out vmodels.Record
	err := s.m.write(ctx, func(st *memState) error {
		if _, ok := st.orgs[orgID]; !ok {
			return sentinel.ErrNotFound
		}
		out = *vmodels.NewPendingRecord(orgID, token)
		st.verifications[orgID] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *InMemoryVerificationStore) FindByOrgID(ctx context.Context, orgID id.OrgID) (*vmodels.Record, error) {
	rec, ok := s.m.read(ctx).verifications[orgID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

func (s *InMemoryVerificationStore) MarkVerified(ctx context.Context, orgID id.OrgID, now time.Time) (*vmodels.Record, error) {
	var out vmodels.Record
	err := s.m.write(ctx, func(st *memState) error {
		rec, ok := st.verifications[orgID]
		if !ok {
			return sentinel.ErrNotFound
		}
		rec.ApplyVerified(now)
		st.verifications[orgID] = rec
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type InMemoryMemberStore struct {
	m *Memory
}

// LockLedger is satisfied by the writer lock held for the whole unit of work.
func (s *InMemoryMemberStore) LockLedger(ctx context.Context, _ id.OrgID) error {
	if _, ok := s.m.txState(ctx); !ok {
		return ErrNoTransaction
	}
	return nil
}

func (s *InMemoryMemberStore) LatestLeafIndex(ctx context.Context, orgID id.OrgID) (int64, error) {
	latest := mmodels.NoLeaves
	for _, member := range s.m.read(ctx).members[orgID] {
		if member.LeafIndex > latest {
			latest = member.LeafIndex
		}
	}
	return latest, nil
}

func (s *InMemoryMemberStore) Insert(ctx context.Context, member mmodels.Member) error {
	return s.m.write(ctx, func(st *memState) error {
		if _, ok := st.orgs[member.OrgID]; !ok {
			return sentinel.ErrNotFound
		}
		for _, existing := range st.members[member.OrgID] {
			if existing.LeafIndex == member.LeafIndex {
				return sentinel.ErrConflict
			}
		}
		member.Commitment = append([]byte(nil), member.Commitment...)
		st.members[member.OrgID] = append(st.members[member.OrgID], member)
		return nil
	})
}

func (s *InMemoryMemberStore) ListByOrg(ctx context.Context, orgID id.OrgID) ([]mmodels.Member, error) {
	rows := s.m.read(ctx).members[orgID]
	out := make([]mmodels.Member, len(rows))
	for i, r := range rows {
		r.Commitment = append([]byte(nil), r.Commitment...)
		out[i] = r
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeafIndex < out[j].LeafIndex })
	return out, nil
}

type InMemoryOutbox struct {
	m *Memory
}

func (s *InMemoryOutbox) Append(ctx context.Context, event audit.Event) error {
	return s.m.write(ctx, func(st *memState) error {
		st.outboxSeq++
		st.outbox = append(st.outbox, memOutboxEntry{entry: audit.OutboxEntry{Seq: st.outboxSeq, Event: event}})
		return nil
	})
}

func (s *InMemoryOutbox) FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	var out []audit.OutboxEntry
	for _, e := range s.m.read(ctx).outbox {
		if e.published {
			continue
		}
		out = append(out, e.entry)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryOutbox) MarkPublished(ctx context.Context, seqs []int64) error {
	done := make(map[int64]struct{}, len(seqs))
	for _, seq := range seqs {
		done[seq] = struct{}{}
	}
	return s.m.write(ctx, func(st *memState) error {
		for i := range st.outbox {
			if _, ok := done[st.outbox[i].entry.Seq]; ok {
				st.outbox[i].published = true
			}
		}
		return nil
	})
}
