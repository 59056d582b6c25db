package leaderboard

import (
	"errors"
	"testing"

	"github.com/5Dev24/EqualBot/internal/domain"
)

func TestRenderEmptyLedger(t *testing.T) {
	if _, err := Render(nil); !errors.Is(err, domain.ErrEmptyLedger) {
		t.Fatalf("expected empty ledger error, got %v", err)
	}
}

func TestRenderColumnLayout(t *testing.T) {
	entries := []domain.LedgerEntry{
		{UserID: "1", Name: "Alice", Points: 100},
		{UserID: "2", Name: "Bob", Points: 60, ChaosPosts: []string{"anarchy"}},
	}

	got, err := Render(entries)
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	expected := "```md\n" +
		"[ Alice ][ 100 ][ 0 ]\n" +
		"[ Bob   ][ 10  ][ 1 ]\n" +
		"```"
	if got != expected {
		t.Fatalf("expected\n%s\ngot\n%s", expected, got)
	}
}

func TestRenderOrdersByRawPointsNotSpendable(t *testing.T) {
	// Bob's spendable balance is higher, but Alice's raw points win.
	entries := []domain.LedgerEntry{
		{UserID: "1", Name: "Alice", Points: 100, ChaosPosts: []string{"a", "b"}},
		{UserID: "2", Name: "Bob", Points: 60},
	}

	got, err := Render(entries)
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	expected := "```md\n" +
		"[ Alice ][  0  ][ 2 ]\n" +
		"[ Bob   ][ 60  ][ 0 ]\n" +
		"```"
	if got != expected {
		t.Fatalf("expected\n%s\ngot\n%s", expected, got)
	}
}

func TestRenderNegativeBalanceWidth(t *testing.T) {
	entries := []domain.LedgerEntry{
		{UserID: "1", Name: "Zed", Points: 40, ChaosPosts: []string{"debt"}},
	}

	got, err := Render(entries)
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	expected := "```md\n" +
		"[ Zed ][ -10 ][ 1 ]\n" +
		"```"
	if got != expected {
		t.Fatalf("expected\n%s\ngot\n%s", expected, got)
	}
}

func TestRenderTiesKeepSnapshotOrder(t *testing.T) {
	entries := []domain.LedgerEntry{
		{UserID: "1", Name: "Alice", Points: 10},
		{UserID: "2", Name: "Bob", Points: 10},
	}

	first, err := Render(entries)
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Render(entries)
		if err != nil {
			t.Fatalf("did not expect error: %v", err)
		}
		if again != first {
			t.Fatal("re-rendering must not reorder tied rows")
		}
	}
}
