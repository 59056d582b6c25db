package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/5Dev24/EqualBot/internal/domain"
	"github.com/5Dev24/EqualBot/internal/infra/metrics"
	"github.com/5Dev24/EqualBot/internal/usecase/classify"
)

// Refresher re-renders the leaderboard after a rebuild.
type Refresher interface {
	Refresh(ctx context.Context)
}

// Service rebuilds the ledger from channel history after an observation gap.
// The rebuild runs through the same classifier as live processing, so a
// replayed history and a live one produce identical ledgers.
type Service struct {
	gateway        domain.ChannelGateway
	ledger         domain.LedgerRepo
	state          domain.StateRepo
	classifier     *classify.Classifier
	refresher      Refresher
	equalChannelID string
	threshold      time.Duration
	purge          bool
	log            zerolog.Logger
}

// NewService builds the reconciliation service.
func NewService(
	gateway domain.ChannelGateway,
	ledger domain.LedgerRepo,
	state domain.StateRepo,
	classifier *classify.Classifier,
	refresher Refresher,
	equalChannelID string,
	threshold time.Duration,
	purge bool,
	logger zerolog.Logger,
) *Service {
	return &Service{
		gateway:        gateway,
		ledger:         ledger,
		state:          state,
		classifier:     classifier,
		refresher:      refresher,
		equalChannelID: equalChannelID,
		threshold:      threshold,
		purge:          purge,
		log:            logger,
	}
}

// ShouldRun reports whether the observation gap warrants a rebuild: no
// recorded last-seen timestamp, a gap at or past the threshold, or an empty
// ledger.
func (s *Service) ShouldRun(ctx context.Context) (bool, error) {
	last, ok, err := s.state.LastSeen(ctx)
	if err != nil {
		return false, fmt.Errorf("load last seen: %w", err)
	}
	if !ok {
		return true, nil
	}
	if gap := time.Since(time.Unix(last, 0)); gap >= s.threshold {
		s.log.Info().Dur("gap", gap).Dur("threshold", s.threshold).Msg("observation gap past threshold")
		return true, nil
	}
	entries, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("load ledger: %w", err)
	}
	return len(entries) == 0, nil
}

// Startup runs the gap check, reconciles when needed and stamps the
// last-seen timestamp. A failed pass is fatal to the pass but not to the
// process; the next restart retries it.
func (s *Service) Startup(ctx context.Context) error {
	run, err := s.ShouldRun(ctx)
	if err != nil {
		return err
	}
	if err := s.state.SetLastSeen(ctx, time.Now().Unix()); err != nil {
		return fmt.Errorf("stamp last seen: %w", err)
	}
	if !run {
		return nil
	}
	return s.Run(ctx)
}

// Run replays the full channel history oldest-first through the classifier
// and swaps in the rebuilt ledger with a single transactional write. Any
// transport failure discards the partial rebuild; re-running from scratch is
// idempotent.
func (s *Service) Run(ctx context.Context) error {
	runID := uuid.NewString()
	start := time.Now()
	s.log.Info().Str("run", runID).Msg("historical reconciliation started")

	rebuilt := make(map[string]*domain.LedgerEntry)
	order := make([]string, 0)

	err := s.gateway.History(ctx, s.equalChannelID, func(msg domain.Message) error {
		metrics.ReconciliationMessages.Inc()
		decision := s.classifier.Classify(msg)
		if decision.Verdict == domain.VerdictIgnore {
			return nil
		}

		entry, ok := rebuilt[msg.AuthorID]
		if !ok {
			entry = &domain.LedgerEntry{UserID: msg.AuthorID, Name: msg.AuthorName}
			rebuilt[msg.AuthorID] = entry
			order = append(order, msg.AuthorID)
		}

		switch decision.Verdict {
		case domain.VerdictAllow:
			entry.Points++
		case domain.VerdictReject:
			if entry.Points > 0 {
				entry.Points--
			}
			if s.purge {
				s.log.Info().Str("run", runID).Str("user", msg.AuthorID).Str("message", msg.ID).Msg("purging rejected message")
				if err := s.gateway.Delete(ctx, msg.ChannelID, msg.ID); err != nil {
					return fmt.Errorf("purge message %s: %w", msg.ID, err)
				}
			} else {
				s.log.Info().Str("run", runID).Str("user", msg.AuthorID).Str("message", msg.ID).Msg("rejected message left in place")
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("history replay: %w", err)
	}

	entries := make([]domain.LedgerEntry, 0, len(order))
	for _, userID := range order {
		entries = append(entries, *rebuilt[userID])
	}
	if err := s.ledger.Replace(ctx, entries); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}

	metrics.ReconciliationSeconds.Observe(time.Since(start).Seconds())
	s.log.Info().Str("run", runID).Int("users", len(entries)).Dur("took", time.Since(start)).Msg("historical reconciliation finished")
	s.refresher.Refresh(ctx)
	return nil
}
