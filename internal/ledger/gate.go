// Package ledger charges job providers for candidate status notifications.
// A deduction and its audit entry commit together or not at all.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/metrics"
	"notification-engine/internal/models"
	"notification-engine/internal/store"

	"github.com/google/uuid"
)

var (
	ErrBalanceCheckFailed    = errors.New("BALANCE_CHECK_FAILED")
	ErrInsufficientCredits   = errors.New("INSUFFICIENT_CREDITS")
	ErrCreditDeductionFailed = errors.New("CREDIT_DEDUCTION_FAILED")
	ErrLedgerWriteFailed     = errors.New("LEDGER_WRITE_FAILED")

	// ErrAlreadyCharged means the ledger already holds an entry for the event.
	ErrAlreadyCharged = errors.New("ALREADY_CHARGED")
)

// Charge describes one billable event.
type Charge struct {
	EventID        string
	PayerID        string
	OrganizationID string
	CandidateUID   string
	Reason         string
}

type Gate struct {
	config  *Config
	db      *sql.DB
	charged store.ChargedSet
	logger  logger.Logger
	newID   func() string
	now     func() time.Time
}

func NewGate(config *Config, db *sql.DB, charged store.ChargedSet, log logger.Logger) *Gate {
	if config == nil {
		config = LoadConfig()
	}
	return &Gate{
		config:  config,
		db:      db,
		charged: charged,
		logger:  logger.Component(log, "credit-ledger"),
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

func (g *Gate) Cost() int {
	return g.config.Cost
}

// AlreadyCharged reports whether the payer has been billed for eventID.
func (g *Gate) AlreadyCharged(ctx context.Context, payerID, eventID string) (bool, error) {
	return g.charged.IsCharged(ctx, payerID, eventID)
}

// Balance returns the payer's credit balance; a payer without a row has zero.
func (g *Gate) Balance(ctx context.Context, payerID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	var balance int
	err := g.db.QueryRowContext(ctx,
		`SELECT balance FROM credit_balances WHERE user_id = $1`, payerID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBalanceCheckFailed, err)
	}
	return balance, nil
}

// Charge deducts the configured cost and appends the ledger entry in one
// transaction, then records the event in the charged set. When the ledger
// already holds the event the transaction is rolled back, the charged set is
// repaired and ErrAlreadyCharged is returned.
func (g *Gate) Charge(ctx context.Context, c Charge) (*models.LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.CreditCharges.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: begin: %v", ErrCreditDeductionFailed, err)
	}
	defer tx.Rollback()

	now := g.now().UTC()
	entry := &models.LedgerEntry{
		ID:             g.newID(),
		EventID:        c.EventID,
		PayerID:        c.PayerID,
		OrganizationID: c.OrganizationID,
		CandidateUID:   c.CandidateUID,
		Amount:         g.config.Cost,
		Reason:         c.Reason,
		CreatedAt:      now,
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE credit_balances SET balance = balance - $2, updated_at = $3
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance`, c.PayerID, g.config.Cost, now).Scan(&entry.BalanceAfter)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.CreditCharges.WithLabelValues("insufficient").Inc()
		return nil, ErrInsufficientCredits
	}
	if err != nil {
		metrics.CreditCharges.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrCreditDeductionFailed, err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO credit_ledger
			(id, event_id, payer_id, organization_id, candidate_uid, amount, balance_after, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING`,
		entry.ID, entry.EventID, entry.PayerID, entry.OrganizationID, entry.CandidateUID,
		entry.Amount, entry.BalanceAfter, entry.Reason, entry.CreatedAt)
	if err != nil {
		metrics.CreditCharges.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrLedgerWriteFailed, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		metrics.CreditCharges.WithLabelValues("duplicate").Inc()
		g.markCharged(ctx, c)
		return nil, ErrAlreadyCharged
	}

	if err := tx.Commit(); err != nil {
		metrics.CreditCharges.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: commit: %v", ErrLedgerWriteFailed, err)
	}
	metrics.CreditCharges.WithLabelValues("charged").Inc()

	g.logger.Info("candidate status charged", map[string]interface{}{
		"eventId":      entry.EventID,
		"payerId":      entry.PayerID,
		"amount":       entry.Amount,
		"balanceAfter": entry.BalanceAfter,
	})

	g.markCharged(ctx, c)
	return entry, nil
}

// markCharged is best effort: the ledger's unique event id keeps a missed
// write from ever billing twice.
func (g *Gate) markCharged(ctx context.Context, c Charge) {
	if err := g.charged.MarkCharged(ctx, c.PayerID, c.EventID); err != nil {
		g.logger.Warn("failed to record charged event", map[string]interface{}{
			"eventId": c.EventID,
			"payerId": c.PayerID,
			"error":   err,
		})
	}
}
