package domain

import "context"

// LedgerRepo persists per-user chaos state. Every mutation is written
// through immediately; there is no cache between the services and the store.
type LedgerRepo interface {
	Entry(ctx context.Context, userID string) (LedgerEntry, bool, error)
	SaveEntry(ctx context.Context, entry LedgerEntry) error
	AppendChaosPost(ctx context.Context, userID, body string) error
	// Snapshot returns every entry ordered by points descending, then user
	// id. The secondary ordering is the leaderboard's tie-break.
	Snapshot(ctx context.Context) ([]LedgerEntry, error)
	// Replace swaps the whole ledger for the given entries in a single
	// transaction. A failed replace leaves the previous ledger intact.
	Replace(ctx context.Context, entries []LedgerEntry) error
}

// BirthdayRepo persists birthday records.
type BirthdayRepo interface {
	All(ctx context.Context) ([]Birthday, error)
	Get(ctx context.Context, userID string) (Birthday, bool, error)
	Save(ctx context.Context, birthday Birthday) error
}

// StateRepo persists the single last-observed event timestamp.
type StateRepo interface {
	LastSeen(ctx context.Context) (int64, bool, error)
	SetLastSeen(ctx context.Context, unix int64) error
}

// ChannelGateway is the transport surface the core depends on. A lookup of
// a missing channel reports ErrChannelUnavailable.
type ChannelGateway interface {
	BotUserID() string
	// History replays a channel's messages oldest-first through fn,
	// unbounded. An error from fn aborts the replay.
	History(ctx context.Context, channelID string, fn func(Message) error) error
	Send(ctx context.Context, channelID, content string) error
	Edit(ctx context.Context, channelID, messageID, content string) error
	Delete(ctx context.Context, channelID, messageID string) error
	ClearReactions(ctx context.Context, channelID, messageID string) error
}
