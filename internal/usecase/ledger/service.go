package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/5Dev24/EqualBot/internal/domain"
	"github.com/5Dev24/EqualBot/internal/infra/metrics"
)

// Refresher is notified after every ledger mutation so the rendered
// leaderboard stays in sync.
type Refresher interface {
	Refresh(ctx context.Context)
}

// Service owns all chaos point mutations. Every operation reads the current
// state from the repo, mutates and writes back; the event handler's lock
// keeps that read-modify-write exclusive.
type Service struct {
	repo      domain.LedgerRepo
	refresher Refresher
	log       zerolog.Logger
}

// NewService builds the ledger service.
func NewService(repo domain.LedgerRepo, refresher Refresher, logger zerolog.Logger) *Service {
	return &Service{repo: repo, refresher: refresher, log: logger}
}

func (s *Service) entryOrNew(ctx context.Context, userID, name string) (domain.LedgerEntry, error) {
	entry, ok, err := s.repo.Entry(ctx, userID)
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("load entry: %w", err)
	}
	if !ok {
		entry = domain.LedgerEntry{UserID: userID}
	}
	entry.Name = name
	return entry, nil
}

// Credit awards one chaos point.
func (s *Service) Credit(ctx context.Context, userID, name string) error {
	entry, err := s.entryOrNew(ctx, userID, name)
	if err != nil {
		return err
	}
	entry.Points++
	if err := s.repo.SaveEntry(ctx, entry); err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	metrics.IncLedgerMutation("credit")
	s.log.Debug().Str("user", userID).Int("points", entry.Points).Msg("chaos credited")
	s.refresher.Refresh(ctx)
	return nil
}

// Debit removes one chaos point, never driving points below zero.
func (s *Service) Debit(ctx context.Context, userID, name string) error {
	entry, err := s.entryOrNew(ctx, userID, name)
	if err != nil {
		return err
	}
	if entry.Points > 0 {
		entry.Points--
	}
	if err := s.repo.SaveEntry(ctx, entry); err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	metrics.IncLedgerMutation("debit")
	s.log.Debug().Str("user", userID).Int("points", entry.Points).Msg("chaos debited")
	s.refresher.Refresh(ctx)
	return nil
}

// SpendableBalance returns points minus the cost of confirmed chaos posts,
// or zero for a user with no entry.
func (s *Service) SpendableBalance(ctx context.Context, userID string) (int, error) {
	entry, ok, err := s.repo.Entry(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load entry: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return entry.SpendableBalance(), nil
}

// RecordChaosPost appends a confirmed post to the user's history. The caller
// has already verified the spendable balance covers the cost.
func (s *Service) RecordChaosPost(ctx context.Context, userID, body string) error {
	if err := s.repo.AppendChaosPost(ctx, userID, body); err != nil {
		return fmt.Errorf("append chaos post: %w", err)
	}
	metrics.IncLedgerMutation("post")
	s.refresher.Refresh(ctx)
	return nil
}
