package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/5Dev24/EqualBot/internal/domain"
	"github.com/5Dev24/EqualBot/internal/infra/metrics"
)

// Postgres implements the store interfaces on top of pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.LedgerRepo = (*Postgres)(nil)
var _ domain.BirthdayRepo = (*Postgres)(nil)
var _ domain.StateRepo = (*Postgres)(nil)

// NewPostgres builds the store adapter.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureSchema creates the tables when they do not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS chaos_users (
	user_id TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	points  INT  NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS chaos_posts (
	id         BIGSERIAL PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES chaos_users(user_id) ON DELETE CASCADE,
	body       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS birthdays (
	user_id TEXT PRIMARY KEY,
	month   INT NOT NULL,
	day     INT NOT NULL
);
CREATE TABLE IF NOT EXISTS bot_state (
	id        BOOL PRIMARY KEY DEFAULT TRUE CHECK (id),
	last_seen BIGINT NOT NULL
);
`)
	metrics.ObserveNetworkRequest("postgres", "ensure_schema", start, err)
	return err
}

// Entry implements domain.LedgerRepo.
func (p *Postgres) Entry(ctx context.Context, userID string) (domain.LedgerEntry, bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	entry := domain.LedgerEntry{UserID: userID}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT name, points FROM chaos_users WHERE user_id=$1
`, userID).Scan(&entry.Name, &entry.Points)
	metrics.ObserveNetworkRequest("postgres", "ledger_entry_get", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LedgerEntry{}, false, nil
	}
	if err != nil {
		return domain.LedgerEntry{}, false, err
	}

	posts, err := p.chaosPosts(ctx, userID)
	if err != nil {
		return domain.LedgerEntry{}, false, err
	}
	entry.ChaosPosts = posts
	return entry, true, nil
}

func (p *Postgres) chaosPosts(ctx context.Context, userID string) ([]string, error) {
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT body FROM chaos_posts WHERE user_id=$1 ORDER BY id
`, userID)
	metrics.ObserveNetworkRequest("postgres", "chaos_posts_list", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []string
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		posts = append(posts, body)
	}
	return posts, rows.Err()
}

// SaveEntry upserts a user's name and points. Chaos posts are written only
// through AppendChaosPost and Replace.
func (p *Postgres) SaveEntry(ctx context.Context, entry domain.LedgerEntry) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO chaos_users (user_id, name, points)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name, points = EXCLUDED.points
`, entry.UserID, entry.Name, entry.Points)
	metrics.ObserveNetworkRequest("postgres", "ledger_entry_upsert", start, err)
	return err
}

// AppendChaosPost implements domain.LedgerRepo.
func (p *Postgres) AppendChaosPost(ctx context.Context, userID, body string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO chaos_posts (user_id, body) VALUES ($1, $2)
`, userID, body)
	metrics.ObserveNetworkRequest("postgres", "chaos_post_insert", start, err)
	return err
}

// Snapshot returns every ledger entry ordered by points descending, then
// user id ascending. The secondary ordering is the leaderboard's documented
// tie-break.
func (p *Postgres) Snapshot(ctx context.Context) ([]domain.LedgerEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_id, name, points FROM chaos_users ORDER BY points DESC, user_id
`)
	metrics.ObserveNetworkRequest("postgres", "ledger_snapshot", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0)
	index := make(map[string]int)
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.UserID, &e.Name, &e.Points); err != nil {
			return nil, err
		}
		index[e.UserID] = len(entries)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	postRows, err := p.pool.Query(ctx, `
SELECT user_id, body FROM chaos_posts ORDER BY user_id, id
`)
	metrics.ObserveNetworkRequest("postgres", "chaos_posts_all", start, err)
	if err != nil {
		return nil, err
	}
	defer postRows.Close()

	for postRows.Next() {
		var userID, body string
		if err := postRows.Scan(&userID, &body); err != nil {
			return nil, err
		}
		if i, ok := index[userID]; ok {
			entries[i].ChaosPosts = append(entries[i].ChaosPosts, body)
		}
	}
	return entries, postRows.Err()
}

// Replace swaps the whole ledger inside one transaction. A failure rolls
// back and leaves the previous ledger intact.
func (p *Postgres) Replace(ctx context.Context, entries []domain.LedgerEntry) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", start, err)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM chaos_posts`); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chaos_users`); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
INSERT INTO chaos_users (user_id, name, points) VALUES ($1, $2, $3)
`, e.UserID, e.Name, e.Points); err != nil {
			return err
		}
		for _, body := range e.ChaosPosts {
			if _, err := tx.Exec(ctx, `
INSERT INTO chaos_posts (user_id, body) VALUES ($1, $2)
`, e.UserID, body); err != nil {
				return err
			}
		}
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "ledger_replace_commit", start, err)
	return err
}

// All implements domain.BirthdayRepo.
func (p *Postgres) All(ctx context.Context) ([]domain.Birthday, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT user_id, month, day FROM birthdays`)
	metrics.ObserveNetworkRequest("postgres", "birthdays_all", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var birthdays []domain.Birthday
	for rows.Next() {
		var b domain.Birthday
		if err := rows.Scan(&b.UserID, &b.Month, &b.Day); err != nil {
			return nil, err
		}
		birthdays = append(birthdays, b)
	}
	return birthdays, rows.Err()
}

// Get implements domain.BirthdayRepo.
func (p *Postgres) Get(ctx context.Context, userID string) (domain.Birthday, bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	b := domain.Birthday{UserID: userID}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT month, day FROM birthdays WHERE user_id=$1
`, userID).Scan(&b.Month, &b.Day)
	metrics.ObserveNetworkRequest("postgres", "birthday_get", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Birthday{}, false, nil
	}
	if err != nil {
		return domain.Birthday{}, false, err
	}
	return b, true, nil
}

// Save implements domain.BirthdayRepo.
func (p *Postgres) Save(ctx context.Context, birthday domain.Birthday) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO birthdays (user_id, month, day)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET month = EXCLUDED.month, day = EXCLUDED.day
`, birthday.UserID, birthday.Month, birthday.Day)
	metrics.ObserveNetworkRequest("postgres", "birthday_upsert", start, err)
	return err
}

// LastSeen implements domain.StateRepo.
func (p *Postgres) LastSeen(ctx context.Context) (int64, bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var last int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT last_seen FROM bot_state WHERE id`).Scan(&last)
	metrics.ObserveNetworkRequest("postgres", "last_seen_get", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return last, true, nil
}

// SetLastSeen implements domain.StateRepo.
func (p *Postgres) SetLastSeen(ctx context.Context, unix int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO bot_state (id, last_seen) VALUES (TRUE, $1)
ON CONFLICT (id) DO UPDATE SET last_seen = EXCLUDED.last_seen
`, unix)
	metrics.ObserveNetworkRequest("postgres", "last_seen_set", start, err)
	return err
}
