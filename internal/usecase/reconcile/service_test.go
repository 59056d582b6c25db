package reconcile

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/5Dev24/EqualBot/internal/domain"
	"github.com/5Dev24/EqualBot/internal/usecase/classify"
	"github.com/5Dev24/EqualBot/internal/usecase/ledger"
)

const equalChannel = "equal-channel"

type stubCalendar struct{}

func (stubCalendar) HasBirthday(int, int) bool { return false }

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

type memStateRepo struct {
	last int64
	set  bool
}

func (r *memStateRepo) LastSeen(context.Context) (int64, bool, error) {
	return r.last, r.set, nil
}

func (r *memStateRepo) SetLastSeen(_ context.Context, unix int64) error {
	r.last, r.set = unix, true
	return nil
}

type stubGateway struct {
	history    []domain.Message
	historyErr error
	deleted    []string
}

func (g *stubGateway) BotUserID() string { return "bot" }
func (g *stubGateway) History(_ context.Context, _ string, fn func(domain.Message) error) error {
	if g.historyErr != nil {
		return g.historyErr
	}
	for _, m := range g.history {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}
func (g *stubGateway) Send(context.Context, string, string) error { return nil }
func (g *stubGateway) Edit(context.Context, string, string, string) error {
	return nil
}
func (g *stubGateway) Delete(_ context.Context, _ string, messageID string) error {
	g.deleted = append(g.deleted, messageID)
	return nil
}
func (g *stubGateway) ClearReactions(context.Context, string, string) error { return nil }

type noopRefresher struct{}

func (noopRefresher) Refresh(context.Context) {}

func equalMsg(id, author, content string) domain.Message {
	return domain.Message{
		ID:         id,
		ChannelID:  equalChannel,
		AuthorID:   author,
		AuthorName: author,
		Content:    content,
		CreatedAt:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newService(gateway *stubGateway, repo *memLedgerRepo, state *memStateRepo, purge bool) *Service {
	classifier := classify.New("bot", equalChannel, stubCalendar{})
	return NewService(gateway, repo, state, classifier, noopRefresher{}, equalChannel,
		10*time.Minute, purge, zerolog.Nop())
}

func TestRunMatchesLiveReplay(t *testing.T) {
	// A channel that live moderation has already policed holds only valid
	// and out-of-scope messages; rebuilding from it must match crediting
	// them live.
	history := []domain.Message{
		equalMsg("m1", "alice", "Equal"),
		equalMsg("m2", "bob", "Equal"),
		equalMsg("m3", "alice", "Equal"),
		equalMsg("m4", "bot", "leaderboard"),
	}

	rebuilt := newMemLedgerRepo()
	if err := newService(&stubGateway{history: history}, rebuilt, &memStateRepo{}, false).Run(context.Background()); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	live := newMemLedgerRepo()
	liveLedger := ledger.NewService(live, noopRefresher{}, zerolog.Nop())
	classifier := classify.New("bot", equalChannel, stubCalendar{})
	for _, msg := range history {
		if classifier.Classify(msg).Verdict == domain.VerdictAllow {
			if err := liveLedger.Credit(context.Background(), msg.AuthorID, msg.AuthorName); err != nil {
				t.Fatalf("did not expect error: %v", err)
			}
		}
	}

	got, _ := rebuilt.Snapshot(context.Background())
	expected, _ := live.Snapshot(context.Background())
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %+v, got %+v", expected, got)
	}
}

func TestRunDebitsRejectsWithFloor(t *testing.T) {
	history := []domain.Message{
		equalMsg("m1", "alice", "not equal"),
		equalMsg("m2", "alice", "Equal"),
		equalMsg("m3", "alice", "still not"),
		equalMsg("m4", "alice", "nope"),
	}

	repo := newMemLedgerRepo()
	if err := newService(&stubGateway{history: history}, repo, &memStateRepo{}, false).Run(context.Background()); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	entry, ok, _ := repo.Entry(context.Background(), "alice")
	if !ok {
		t.Fatal("expected alice on the rebuilt ledger")
	}
	if entry.Points != 0 {
		t.Fatalf("expected points floored at 0, got %d", entry.Points)
	}
}

func TestRunPurgeDeletesRejects(t *testing.T) {
	history := []domain.Message{
		equalMsg("m1", "alice", "spam"),
		equalMsg("m2", "alice", "Equal"),
	}

	gateway := &stubGateway{history: history}
	if err := newService(gateway, newMemLedgerRepo(), &memStateRepo{}, true).Run(context.Background()); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if len(gateway.deleted) != 1 || gateway.deleted[0] != "m1" {
		t.Fatalf("expected m1 to be purged, got %v", gateway.deleted)
	}
}

func TestRunWithoutPurgeLeavesRejects(t *testing.T) {
	gateway := &stubGateway{history: []domain.Message{equalMsg("m1", "alice", "spam")}}
	if err := newService(gateway, newMemLedgerRepo(), &memStateRepo{}, false).Run(context.Background()); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if len(gateway.deleted) != 0 {
		t.Fatalf("nothing should have been deleted, got %v", gateway.deleted)
	}
}

func TestRunDiscardsPreviousLedger(t *testing.T) {
	repo := newMemLedgerRepo()
	repo.entries["stale"] = domain.LedgerEntry{UserID: "stale", Name: "Stale", Points: 99}

	history := []domain.Message{equalMsg("m1", "alice", "Equal")}
	if err := newService(&stubGateway{history: history}, repo, &memStateRepo{}, false).Run(context.Background()); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	if _, ok, _ := repo.Entry(context.Background(), "stale"); ok {
		t.Fatal("the stale entry must not survive a rebuild")
	}
	entry, ok, _ := repo.Entry(context.Background(), "alice")
	if !ok || entry.Points != 1 {
		t.Fatalf("expected alice with 1 point, got %+v (found=%v)", entry, ok)
	}
}

func TestRunTransportFailureKeepsLedger(t *testing.T) {
	repo := newMemLedgerRepo()
	repo.entries["alice"] = domain.LedgerEntry{UserID: "alice", Name: "alice", Points: 5}

	gateway := &stubGateway{historyErr: errors.New("gateway down")}
	if err := newService(gateway, repo, &memStateRepo{}, false).Run(context.Background()); err == nil {
		t.Fatal("expected the pass to fail")
	}

	entry, ok, _ := repo.Entry(context.Background(), "alice")
	if !ok || entry.Points != 5 {
		t.Fatalf("a failed pass must not touch the ledger, got %+v (found=%v)", entry, ok)
	}
}

func TestShouldRun(t *testing.T) {
	ctx := context.Background()
	history := &stubGateway{}

	t.Run("no last seen", func(t *testing.T) {
		run, err := newService(history, newMemLedgerRepo(), &memStateRepo{}, false).ShouldRun(ctx)
		if err != nil {
			t.Fatalf("did not expect error: %v", err)
		}
		if !run {
			t.Fatal("expected a run with no recorded timestamp")
		}
	})

	t.Run("gap past threshold", func(t *testing.T) {
		state := &memStateRepo{last: time.Now().Add(-time.Hour).Unix(), set: true}
		run, err := newService(history, newMemLedgerRepo(), state, false).ShouldRun(ctx)
		if err != nil {
			t.Fatalf("did not expect error: %v", err)
		}
		if !run {
			t.Fatal("expected a run after an hour-long gap")
		}
	})

	t.Run("recent but empty ledger", func(t *testing.T) {
		state := &memStateRepo{last: time.Now().Unix(), set: true}
		run, err := newService(history, newMemLedgerRepo(), state, false).ShouldRun(ctx)
		if err != nil {
			t.Fatalf("did not expect error: %v", err)
		}
		if !run {
			t.Fatal("expected a run when no ledger exists yet")
		}
	})

	t.Run("recent with ledger", func(t *testing.T) {
		state := &memStateRepo{last: time.Now().Unix(), set: true}
		repo := newMemLedgerRepo()
		repo.entries["alice"] = domain.LedgerEntry{UserID: "alice", Points: 1}
		run, err := newService(history, repo, state, false).ShouldRun(ctx)
		if err != nil {
			t.Fatalf("did not expect error: %v", err)
		}
		if run {
			t.Fatal("did not expect a run with a recent timestamp and a populated ledger")
		}
	})
}

func TestStartupStampsLastSeen(t *testing.T) {
	state := &memStateRepo{}
	if err := newService(&stubGateway{}, newMemLedgerRepo(), state, false).Startup(context.Background()); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if !state.set {
		t.Fatal("expected the last-seen timestamp to be stamped")
	}
}
