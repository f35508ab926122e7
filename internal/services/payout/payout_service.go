// Package payout drives payout requests through their lifecycle.
//
// Every transition moves the request and the owner's balances in one
// transaction: held amounts sit in the pending balance and leave it when the
// request completes, is cancelled or fails.
package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
	"github.com/kevin07696/royalty-service/pkg/observability"
	"github.com/kevin07696/royalty-service/pkg/timeutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service implements the payout lifecycle
type Service struct {
	store  ports.Store
	logger *zap.Logger
}

// NewService creates a new payout service
func NewService(store ports.Store, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.Named("payout"),
	}
}

// Request reserves amount from the user's available balance
func (s *Service) Request(ctx context.Context, userID string, amount decimal.Decimal) (*domain.PayoutRequest, error) {
	amount = domain.RoundMoney(amount)
	if !amount.IsPositive() {
		return nil, domain.ErrValidationAmountInvalid.WithDetail("amount", amount.String())
	}

	var created *domain.PayoutRequest
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		user, err := s.store.Users.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.AvailableBalance.LessThan(amount) {
			return domain.ErrInsufficientFunds.
				WithDetail("available", user.AvailableBalance.String()).
				WithDetail("requested", amount.String())
		}

		now := timeutil.Now()
		p := &domain.PayoutRequest{
			ID:          uuid.New().String(),
			UserID:      userID,
			Amount:      amount,
			Status:      domain.PayoutStatusPending,
			RequestedAt: now,
			UpdatedAt:   now,
		}
		if err := s.store.Payouts.Create(ctx, tx, p); err != nil {
			return fmt.Errorf("create payout request: %w", err)
		}

		balances := user.Balances()
		balances.Available = balances.Available.Sub(amount)
		balances.Pending = balances.Pending.Add(amount)
		if err := s.store.Users.UpdateBalances(ctx, tx, userID, balances); err != nil {
			return fmt.Errorf("reserve payout amount: %w", err)
		}
		created = p
		return nil
	})
	if err != nil {
		s.logger.Warn("payout request rejected",
			zap.String("user_id", userID),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return nil, err
	}

	observability.RecordPayoutTransition("", string(domain.PayoutStatusPending))
	s.logger.Info("payout requested",
		zap.String("payout_id", created.ID),
		zap.String("user_id", userID),
		zap.String("amount", amount.String()))
	return created, nil
}

// Approve moves a pending request to APPROVED
func (s *Service) Approve(ctx context.Context, id string) (*domain.PayoutRequest, error) {
	return s.move(ctx, id, domain.PayoutStatusApproved, nil)
}

// StartProcessing moves an approved request to PROCESSING, optionally recording the transfer
func (s *Service) StartProcessing(ctx context.Context, id string, transferID *string) (*domain.PayoutRequest, error) {
	return s.move(ctx, id, domain.PayoutStatusProcessing, func(p *domain.PayoutRequest) error {
		if transferID != nil && *transferID != "" {
			p.TransferID = transferID
		}
		return nil
	})
}

// Complete settles a processing request. A transfer id is required unless one
// was recorded when processing started.
func (s *Service) Complete(ctx context.Context, id, transferID string) (*domain.PayoutRequest, error) {
	return s.move(ctx, id, domain.PayoutStatusCompleted, func(p *domain.PayoutRequest) error {
		if transferID != "" {
			p.TransferID = &transferID
		}
		if !p.HasTransfer() {
			return domain.ErrValidationFailed.WithDetail("transfer_id", "required to complete a payout")
		}
		return nil
	})
}

// Cancel returns a held amount to the available balance
func (s *Service) Cancel(ctx context.Context, id, reason string) (*domain.PayoutRequest, error) {
	return s.move(ctx, id, domain.PayoutStatusCancelled, withReason(reason))
}

// Fail records a failed transfer and returns the amount to the available balance
func (s *Service) Fail(ctx context.Context, id, reason string) (*domain.PayoutRequest, error) {
	return s.move(ctx, id, domain.PayoutStatusFailed, withReason(reason))
}

func withReason(reason string) func(p *domain.PayoutRequest) error {
	return func(p *domain.PayoutRequest) error {
		if reason != "" {
			p.FailureReason = &reason
		}
		return nil
	}
}

func (s *Service) move(ctx context.Context, id string, next domain.PayoutStatus, mutate func(p *domain.PayoutRequest) error) (*domain.PayoutRequest, error) {
	var (
		moved *domain.PayoutRequest
		from  domain.PayoutStatus
	)
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		p, err := s.store.Payouts.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		from = p.Status
		if mutate != nil {
			if err := mutate(p); err != nil {
				return err
			}
		}
		now := timeutil.Now()
		if err := Transition(ctx, tx, s.store, p, next, now); err != nil {
			return err
		}
		if next == domain.PayoutStatusCompleted {
			if _, err := IssueInvoice(ctx, tx, s.store, p, now); err != nil {
				return err
			}
		}
		moved = p
		return nil
	})
	if err != nil {
		s.logger.Warn("payout transition rejected",
			zap.String("payout_id", id),
			zap.String("to", string(next)),
			zap.Error(err))
		return nil, err
	}

	observability.RecordPayoutTransition(string(from), string(next))
	s.logger.Info("payout transitioned",
		zap.String("payout_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(next)))
	return moved, nil
}

// Transition moves p to next inside tx and applies the balance delta to its
// owner in the same transaction. The caller must have locked p.
func Transition(ctx context.Context, tx ports.DBTX, store ports.Store, p *domain.PayoutRequest, next domain.PayoutStatus, now time.Time) error {
	if p.Status == domain.PayoutStatusCancelled && next == domain.PayoutStatusCancelled {
		return domain.ErrPayoutAlreadyCancelled.WithDetail("payout_id", p.ID)
	}
	if !p.Status.CanTransitionTo(next) {
		return domain.ErrPayoutInvalidTransition.
			WithDetail("payout_id", p.ID).
			WithDetail("from", string(p.Status)).
			WithDetail("to", string(next))
	}

	user, err := store.Users.GetForUpdate(ctx, tx, p.UserID)
	if err != nil {
		return err
	}
	balances := user.Balances().Add(p.BalanceDelta(next))
	if balances.HasNegative() {
		return domain.ErrMoneyInvariant.
			WithDetail("reason", "transition would drive a balance negative; reconcile the user first").
			WithDetail("payout_id", p.ID).
			WithDetail("user_id", p.UserID).
			WithDetail("pending", user.PendingBalance.String()).
			WithDetail("amount", p.Amount.String())
	}

	p.Status = next
	p.UpdatedAt = now
	switch next {
	case domain.PayoutStatusApproved:
		p.ApprovedAt = &now
	case domain.PayoutStatusProcessing:
		p.ProcessedAt = &now
	case domain.PayoutStatusCompleted:
		p.CompletedAt = &now
	case domain.PayoutStatusCancelled, domain.PayoutStatusFailed:
		p.CancelledAt = &now
	}

	if err := store.Payouts.Update(ctx, tx, p); err != nil {
		return fmt.Errorf("update payout %s: %w", p.ID, err)
	}
	if err := store.Users.UpdateBalances(ctx, tx, p.UserID, balances); err != nil {
		return fmt.Errorf("update balances of %s: %w", p.UserID, err)
	}
	return nil
}

// IssueInvoice creates the receipt of a completed payout unless it exists.
// It reports whether an invoice was written.
func IssueInvoice(ctx context.Context, tx ports.DBTX, store ports.Store, p *domain.PayoutRequest, now time.Time) (bool, error) {
	exists, err := store.Invoices.ExistsForPayout(ctx, tx, p.ID)
	if err != nil {
		return false, fmt.Errorf("check payout invoice: %w", err)
	}
	if exists {
		return false, nil
	}
	issuedAt := now
	if p.CompletedAt != nil {
		issuedAt = *p.CompletedAt
	}
	pid := p.ID
	inv := &domain.Invoice{
		ID:       uuid.New().String(),
		UserID:   p.UserID,
		PayoutID: &pid,
		Kind:     domain.InvoiceKindPayout,
		Number:   domain.InvoiceNumber(domain.InvoiceKindPayout, p.ID),
		Amount:   p.Amount,
		IssuedAt: issuedAt,
	}
	if err := store.Invoices.Create(ctx, tx, inv); err != nil {
		return false, fmt.Errorf("create payout invoice: %w", err)
	}
	return true, nil
}
