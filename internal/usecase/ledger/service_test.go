package ledger

import (
	"context"
	"sort"
	"testing"

	"github.com/rs/zerolog"

	"github.com/5Dev24/EqualBot/internal/domain"
)

type memLedgerRepo struct {
	entries map[string]domain.LedgerEntry
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{entries: make(map[string]domain.LedgerEntry)}
}

func (r *memLedgerRepo) Entry(_ context.Context, userID string) (domain.LedgerEntry, bool, error) {
	e, ok := r.entries[userID]
	return e, ok, nil
}

func (r *memLedgerRepo) SaveEntry(_ context.Context, entry domain.LedgerEntry) error {
	if existing, ok := r.entries[entry.UserID]; ok {
		entry.ChaosPosts = existing.ChaosPosts
	}
	r.entries[entry.UserID] = entry
	return nil
}

func (r *memLedgerRepo) AppendChaosPost(_ context.Context, userID, body string) error {
	e := r.entries[userID]
	e.UserID = userID
	e.ChaosPosts = append(e.ChaosPosts, body)
	r.entries[userID] = e
	return nil
}

func (r *memLedgerRepo) Snapshot(context.Context) ([]domain.LedgerEntry, error) {
	out := make([]domain.LedgerEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (r *memLedgerRepo) Replace(_ context.Context, entries []domain.LedgerEntry) error {
	r.entries = make(map[string]domain.LedgerEntry, len(entries))
	for _, e := range entries {
		r.entries[e.UserID] = e
	}
	return nil
}

type countingRefresher struct {
	calls int
}

func (c *countingRefresher) Refresh(context.Context) { c.calls++ }

func TestDebitNeverGoesNegative(t *testing.T) {
	repo := newMemLedgerRepo()
	s := NewService(repo, &countingRefresher{}, zerolog.Nop())
	ctx := context.Background()

	if err := s.Credit(ctx, "u1", "alice"); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if err := s.Debit(ctx, "u1", "alice"); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if err := s.Debit(ctx, "u1", "alice"); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	entry, _, _ := repo.Entry(ctx, "u1")
	if entry.Points != 0 {
		t.Fatalf("expected 0 points, got %d", entry.Points)
	}
}

func TestDebitCreatesEntryAtZero(t *testing.T) {
	repo := newMemLedgerRepo()
	s := NewService(repo, &countingRefresher{}, zerolog.Nop())

	if err := s.Debit(context.Background(), "u1", "alice"); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	entry, ok, _ := repo.Entry(context.Background(), "u1")
	if !ok {
		t.Fatal("expected the entry to now exist")
	}
	if entry.Points != 0 {
		t.Fatalf("expected 0 points, got %d", entry.Points)
	}
}

func TestSpendableBalanceRoundTrip(t *testing.T) {
	repo := newMemLedgerRepo()
	s := NewService(repo, &countingRefresher{}, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if err := s.Credit(ctx, "u1", "alice"); err != nil {
			t.Fatalf("did not expect error: %v", err)
		}
	}
	if err := s.RecordChaosPost(ctx, "u1", "anarchy"); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	balance, err := s.SpendableBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected balance 0 after spending exactly 50, got %d", balance)
	}
}

func TestSpendableBalanceMayGoNegative(t *testing.T) {
	repo := newMemLedgerRepo()
	s := NewService(repo, &countingRefresher{}, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if err := s.Credit(ctx, "u1", "alice"); err != nil {
			t.Fatalf("did not expect error: %v", err)
		}
	}
	if err := s.RecordChaosPost(ctx, "u1", "anarchy"); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if err := s.Debit(ctx, "u1", "alice"); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	balance, _ := s.SpendableBalance(ctx, "u1")
	if balance != -1 {
		t.Fatalf("spendable balance represents debt and is not clamped, expected -1, got %d", balance)
	}
}

func TestSpendableBalanceUnknownUserIsZero(t *testing.T) {
	s := NewService(newMemLedgerRepo(), &countingRefresher{}, zerolog.Nop())
	balance, err := s.SpendableBalance(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected 0 for an unknown user, got %d", balance)
	}
}

func TestMutationsTriggerLeaderboardRefresh(t *testing.T) {
	refresher := &countingRefresher{}
	s := NewService(newMemLedgerRepo(), refresher, zerolog.Nop())
	ctx := context.Background()

	_ = s.Credit(ctx, "u1", "alice")
	_ = s.Debit(ctx, "u1", "alice")
	_ = s.RecordChaosPost(ctx, "u1", "post")

	if refresher.calls != 3 {
		t.Fatalf("expected 3 refreshes, got %d", refresher.calls)
	}
}

func TestCreditUpdatesDisplayName(t *testing.T) {
	repo := newMemLedgerRepo()
	s := NewService(repo, &countingRefresher{}, zerolog.Nop())
	ctx := context.Background()

	_ = s.Credit(ctx, "u1", "alice")
	_ = s.Credit(ctx, "u1", "alice-renamed")

	entry, _, _ := repo.Entry(ctx, "u1")
	if entry.Name != "alice-renamed" {
		t.Fatalf("expected the latest display name, got %q", entry.Name)
	}
	if entry.Points != 2 {
		t.Fatalf("expected 2 points, got %d", entry.Points)
	}
}
