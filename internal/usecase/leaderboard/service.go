package leaderboard

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/5Dev24/EqualBot/internal/domain"
	"github.com/5Dev24/EqualBot/internal/infra/metrics"
)

// errFound stops the history scan once the bot's own message is located.
var errFound = errors.New("leaderboard message found")

// Service pushes rendered leaderboards to the leaderboard channel, editing
// the bot's existing message when one exists.
type Service struct {
	repo      domain.LedgerRepo
	gateway   domain.ChannelGateway
	channelID string
	log       zerolog.Logger
}

// NewService builds the leaderboard updater.
func NewService(repo domain.LedgerRepo, gateway domain.ChannelGateway, channelID string, logger zerolog.Logger) *Service {
	return &Service{repo: repo, gateway: gateway, channelID: channelID, log: logger}
}

// Refresh re-renders the leaderboard from the latest persisted ledger. Every
// failure degrades to a logged no-op; the ledger itself is already safe.
func (s *Service) Refresh(ctx context.Context) {
	if err := s.update(ctx); err != nil {
		s.log.Error().Err(err).Str("channel", s.channelID).Msg("leaderboard refresh failed")
	}
}

func (s *Service) update(ctx context.Context) error {
	entries, err := s.repo.Snapshot(ctx)
	if err != nil {
		return err
	}
	text, err := Render(entries)
	if errors.Is(err, domain.ErrEmptyLedger) {
		s.log.Debug().Msg("ledger empty, leaderboard render suppressed")
		return nil
	}
	if err != nil {
		return err
	}

	var targetID string
	err = s.gateway.History(ctx, s.channelID, func(msg domain.Message) error {
		if msg.AuthorID == s.gateway.BotUserID() {
			targetID = msg.ID
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return err
	}

	if targetID != "" {
		if err := s.gateway.Edit(ctx, s.channelID, targetID, text); err != nil {
			return err
		}
	} else {
		if err := s.gateway.Send(ctx, s.channelID, text); err != nil {
			return err
		}
	}
	metrics.LeaderboardRendersTotal.Inc()
	return nil
}
