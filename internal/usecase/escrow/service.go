package escrow

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/5Dev24/EqualBot/internal/domain"
	"github.com/5Dev24/EqualBot/internal/infra/metrics"
)

// Ledger is the balance surface the escrow checks against.
type Ledger interface {
	SpendableBalance(ctx context.Context, userID string) (int, error)
	RecordChaosPost(ctx context.Context, userID, body string) error
}

// Service runs the post/confirm/cancel protocol. Pending posts are process
// local and lost on restart; there is at most one per user.
type Service struct {
	ledger         Ledger
	gateway        domain.ChannelGateway
	chaosChannelID string
	log            zerolog.Logger

	mu      sync.Mutex
	pending map[string]string
}

// NewService builds the escrow service.
func NewService(ledger Ledger, gateway domain.ChannelGateway, chaosChannelID string, logger zerolog.Logger) *Service {
	return &Service{
		ledger:         ledger,
		gateway:        gateway,
		chaosChannelID: chaosChannelID,
		log:            logger,
		pending:        make(map[string]string),
	}
}

// RequestPost escrows text for a later confirm and returns the balance the
// user would have after the spend. A second request replaces the first.
func (s *Service) RequestPost(ctx context.Context, userID, body string) (int, error) {
	balance, err := s.ledger.SpendableBalance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("check balance: %w", err)
	}
	if balance < domain.ChaosPostCost {
		metrics.IncEscrowOutcome("request_rejected")
		return balance, domain.ErrInsufficientFunds
	}
	s.mu.Lock()
	s.pending[userID] = body
	s.mu.Unlock()
	metrics.IncEscrowOutcome("requested")
	return balance - domain.ChaosPostCost, nil
}

// Confirm sends the pending post to the output channel and records the
// spend. The balance is re-checked: moderation debits may have drained it
// since the request, in which case the pending post is discarded. A failed
// send keeps the pending post so the user can retry without re-typing.
func (s *Service) Confirm(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	body, ok := s.pending[userID]
	s.mu.Unlock()
	if !ok {
		return 0, domain.ErrNoPendingPost
	}

	balance, err := s.ledger.SpendableBalance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("check balance: %w", err)
	}
	if balance < domain.ChaosPostCost {
		s.mu.Lock()
		delete(s.pending, userID)
		s.mu.Unlock()
		metrics.IncEscrowOutcome("confirm_rejected")
		return balance, domain.ErrInsufficientFunds
	}

	if err := s.gateway.Send(ctx, s.chaosChannelID, body); err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("chaos post delivery failed")
		metrics.IncEscrowOutcome("send_failed")
		return balance, err
	}

	if err := s.ledger.RecordChaosPost(ctx, userID, body); err != nil {
		return balance, err
	}
	s.mu.Lock()
	delete(s.pending, userID)
	s.mu.Unlock()
	metrics.IncEscrowOutcome("confirmed")
	return balance - domain.ChaosPostCost, nil
}

// Cancel drops the pending post.
func (s *Service) Cancel(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[userID]; !ok {
		return domain.ErrNoPendingPost
	}
	delete(s.pending, userID)
	metrics.IncEscrowOutcome("cancelled")
	return nil
}
