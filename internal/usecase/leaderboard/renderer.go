package leaderboard

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/5Dev24/EqualBot/internal/domain"
)

// Render builds the leaderboard text from a ledger snapshot. Rows are
// ordered by raw points descending; ties keep the snapshot's order, which
// the repo fixes as user id ascending. Column widths are undefined with
// zero rows, so an empty snapshot is ErrEmptyLedger and the caller must
// suppress the render.
func Render(entries []domain.LedgerEntry) (string, error) {
	if len(entries) == 0 {
		return "", domain.ErrEmptyLedger
	}

	rows := make([]domain.LedgerEntry, len(entries))
	copy(rows, entries)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Points > rows[j].Points
	})

	var nameWidth, balanceWidth, postsWidth int
	for _, e := range rows {
		if w := len(e.Name); w > nameWidth {
			nameWidth = w
		}
		if w := len(strconv.Itoa(e.SpendableBalance())); w > balanceWidth {
			balanceWidth = w
		}
		if w := len(strconv.Itoa(len(e.ChaosPosts))); w > postsWidth {
			postsWidth = w
		}
	}

	var b strings.Builder
	b.WriteString("```md")
	for _, e := range rows {
		balance := center(strconv.Itoa(e.SpendableBalance()), balanceWidth)
		b.WriteString(fmt.Sprintf("\n[ %-*s ][ %s ][ %*d ]",
			nameWidth, e.Name, balance, postsWidth, len(e.ChaosPosts)))
	}
	b.WriteString("\n```")
	return b.String(), nil
}

// center pads s to width, putting the odd space on the right.
func center(s string, width int) string {
	total := width - len(s)
	if total <= 0 {
		return s
	}
	left := total / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", total-left)
}
