package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// memRepo is an in-memory Repository that enforces the same (reason, ref_id)
// uniqueness the database index provides. Replayed appends resolve to the
// already stored entry, mirroring the ON CONFLICT path.
type memRepo struct {
	mu      sync.Mutex
	entries []Entry
	byRef   map[string]*Entry
}

func newMemRepo() *memRepo {
	return &memRepo{byRef: map[string]*Entry{}}
}

func refKeyOf(e *Entry) string {
	return string(e.Reason) + "|" + e.RefID.String
}

func (m *memRepo) appendLocked(e *Entry) error {
	if e.RefID.Valid {
		if existing, ok := m.byRef[refKeyOf(e)]; ok {
			*e = *existing
			return nil
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now()
	stored := *e
	m.entries = append(m.entries, stored)
	if e.RefID.Valid {
		m.byRef[refKeyOf(e)] = &stored
	}
	return nil
}

func (m *memRepo) Append(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(e)
}

func (m *memRepo) AppendMany(ctx context.Context, entries []*Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if err := m.appendLocked(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *memRepo) SumByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, e := range m.entries {
		if e.OwnerID == ownerID {
			sum += e.AmountKRW
		}
	}
	return sum, nil
}

func (m *memRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0)
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].OwnerID == ownerID {
			out = append(out, m.entries[i])
		}
	}
	if offset >= len(out) {
		return []Entry{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.entries {
		if e.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (m *memRepo) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return nil, errors.New("not supported in memory repo")
}

func (m *memRepo) AppendTx(ctx context.Context, tx *sqlx.Tx, e *Entry) error {
	return m.Append(ctx, e)
}

func (m *memRepo) AppendManyTx(ctx context.Context, tx *sqlx.Tx, entries []*Entry) error {
	return m.AppendMany(ctx, entries)
}

func (m *memRepo) SumByOwnerTx(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID) (int64, error) {
	return m.SumByOwner(ctx, ownerID)
}

func (m *memRepo) ExistsByReasonRefTx(ctx context.Context, tx *sqlx.Tx, reason Reason, refID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byRef[string(reason)+"|"+refID]
	return ok, nil
}

var _ Repository = (*memRepo)(nil)

func TestAppendRejectsZeroAmount(t *testing.T) {
	svc := NewService(newMemRepo(), nil, time.Second)

	err := svc.Append(context.Background(), NewEntry(uuid.New(), 0, ReasonTopUp, "pay-1"))
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestAppendRejectsUnknownReason(t *testing.T) {
	svc := NewService(newMemRepo(), nil, time.Second)

	err := svc.Append(context.Background(), NewEntry(uuid.New(), 100, Reason("BONUS"), "bonus-1"))
	if !errors.Is(err, ErrInvalidReason) {
		t.Fatalf("expected ErrInvalidReason, got %v", err)
	}
}

func TestAppendReplaySameRefCountsOnce(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, time.Second)
	owner := uuid.New()

	first := NewEntry(owner, 5000, ReasonTopUp, "payment-42")
	if err := svc.Append(context.Background(), first); err != nil {
		t.Fatalf("first append err: %v", err)
	}
	replay := NewEntry(owner, 5000, ReasonTopUp, "payment-42")
	if err := svc.Append(context.Background(), replay); err != nil {
		t.Fatalf("replay append err: %v", err)
	}

	if replay.ID != first.ID {
		t.Fatal("expected replay to resolve to the original entry id")
	}
	balance, err := svc.Balance(context.Background(), owner)
	if err != nil {
		t.Fatalf("balance err: %v", err)
	}
	if balance != 5000 {
		t.Fatalf("expected balance 5000 after replay, got %d", balance)
	}
	count, _ := repo.CountByOwner(context.Background(), owner)
	if count != 1 {
		t.Fatalf("expected one stored entry, got %d", count)
	}
}

func TestAppendDistinctReasonsShareRefID(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, time.Second)
	advertiser := uuid.New()
	orderID := uuid.New().String()

	entries := []*Entry{
		NewEntry(advertiser, 300000, ReasonOrderCredit, orderID),
		NewEntry(advertiser, -300000, ReasonOrderBurn, orderID),
	}
	if err := svc.AppendMany(context.Background(), entries); err != nil {
		t.Fatalf("append many err: %v", err)
	}

	balance, err := svc.Balance(context.Background(), advertiser)
	if err != nil {
		t.Fatalf("balance err: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected net-zero order pair, got balance %d", balance)
	}
	count, _ := repo.CountByOwner(context.Background(), advertiser)
	if count != 2 {
		t.Fatalf("expected two entries, got %d", count)
	}
}

func TestAppendManyRejectsEmptyBatch(t *testing.T) {
	svc := NewService(newMemRepo(), nil, time.Second)

	if err := svc.AppendMany(context.Background(), nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestAppendManyValidatesEveryEntry(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, time.Second)
	owner := uuid.New()

	entries := []*Entry{
		NewEntry(owner, 1000, ReasonTopUp, "p-1"),
		NewEntry(owner, 0, ReasonTopUp, "p-2"),
	}
	if err := svc.AppendMany(context.Background(), entries); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	count, _ := repo.CountByOwner(context.Background(), owner)
	if count != 0 {
		t.Fatalf("expected no entries after failed validation, got %d", count)
	}
}

func TestAdjustAppendsSignedEntry(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, time.Second)
	owner := uuid.New()

	if _, err := svc.Adjust(context.Background(), owner, 10000, "support-123"); err != nil {
		t.Fatalf("credit adjust err: %v", err)
	}
	if _, err := svc.Adjust(context.Background(), owner, -2500, "support-124"); err != nil {
		t.Fatalf("debit adjust err: %v", err)
	}
	if _, err := svc.Adjust(context.Background(), owner, 0, "support-125"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatal("expected zero adjustment to be rejected")
	}

	balance, err := svc.Balance(context.Background(), owner)
	if err != nil {
		t.Fatalf("balance err: %v", err)
	}
	if balance != 7500 {
		t.Fatalf("expected balance 7500, got %d", balance)
	}
}

func TestAdjustReplaySameRefIsNoop(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, time.Second)
	owner := uuid.New()

	if _, err := svc.Adjust(context.Background(), owner, 10000, "ticket-9"); err != nil {
		t.Fatalf("adjust err: %v", err)
	}
	if _, err := svc.Adjust(context.Background(), owner, 10000, "ticket-9"); err != nil {
		t.Fatalf("replay adjust err: %v", err)
	}

	balance, _ := svc.Balance(context.Background(), owner)
	if balance != 10000 {
		t.Fatalf("expected replayed adjustment to count once, got %d", balance)
	}
}

func TestBalanceFoldsAllReasons(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, time.Second)
	member := uuid.New()

	seed := []*Entry{
		NewEntry(member, 5000, ReasonTopUp, "pay-a"),
		NewEntry(member, 1500, ReasonMissionReward, uuid.New().String()),
		NewEntry(member, -3000, ReasonPayout, uuid.New().String()),
	}
	if err := svc.AppendMany(context.Background(), seed); err != nil {
		t.Fatalf("seed err: %v", err)
	}

	balance, err := svc.Balance(context.Background(), member)
	if err != nil {
		t.Fatalf("balance err: %v", err)
	}
	if balance != 3500 {
		t.Fatalf("expected balance 3500, got %d", balance)
	}
}

func TestListEntriesNewestFirstWithTotal(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, time.Second)
	owner := uuid.New()

	for i := 0; i < 5; i++ {
		if err := svc.Append(context.Background(), NewEntry(owner, 100, ReasonTopUp, uuid.New().String())); err != nil {
			t.Fatalf("append err: %v", err)
		}
	}

	entries, total, err := svc.ListEntries(context.Background(), owner, 3, 0)
	if err != nil {
		t.Fatalf("list err: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries in page, got %d", len(entries))
	}
}
