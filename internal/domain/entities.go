package domain

import "time"

// ChaosPostCost is the spendable-point price of one confirmed chaos post.
const ChaosPostCost = 50

// Verdict is the classifier's decision for a single message.
type Verdict int

const (
	// VerdictIgnore marks messages outside the policed scope (the bot's own
	// messages, or messages from other channels).
	VerdictIgnore Verdict = iota
	// VerdictAllow marks a valid post that earns a chaos point.
	VerdictAllow
	// VerdictReject marks an invalid post that costs a chaos point.
	VerdictReject
)

func (v Verdict) String() string {
	switch v {
	case VerdictAllow:
		return "allow"
	case VerdictReject:
		return "reject"
	default:
		return "ignore"
	}
}

// Message is the transport-independent view of a chat message.
type Message struct {
	ID          string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	Content     string // platform-rendered text, mentions resolved
	Attachments int
	Reactions   int
	IsReply     bool
	IsSystem    bool
	CreatedAt   time.Time
}

// LedgerEntry holds one user's chaos state.
type LedgerEntry struct {
	UserID     string
	Name       string
	Points     int
	ChaosPosts []string
}

// SpendableBalance is the only balance checked against spend thresholds.
// It is deliberately not clamped: confirmed posts can leave a user in debt.
func (e LedgerEntry) SpendableBalance() int {
	return e.Points - len(e.ChaosPosts)*ChaosPostCost
}

// Birthday is one user's stored birthday.
type Birthday struct {
	UserID string
	Month  int
	Day    int
}
