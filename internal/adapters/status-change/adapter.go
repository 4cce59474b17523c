// Package statuschange surfaces paid candidate status updates that arrive as
// JSON payloads in the admin message field. A notification exists only once
// its event has been paid for.
package statuschange

import (
	"context"
	"errors"
	"fmt"

	"notification-engine/internal/common/logger"
	"notification-engine/internal/ledger"
	"notification-engine/internal/models"
)

const Name = "status-change"

var ErrApprovalFetchFailed = errors.New("SOURCE_FETCH_FAILED")

type ApprovalReader interface {
	GetApprovalRecord(ctx context.Context, userID string) (*models.ApprovalRecord, error)
}

// CreditGate is the subset of the ledger gate the adapter bills through.
type CreditGate interface {
	Cost() int
	AlreadyCharged(ctx context.Context, payerID, eventID string) (bool, error)
	Balance(ctx context.Context, payerID string) (int, error)
	Charge(ctx context.Context, c ledger.Charge) (*models.LedgerEntry, error)
}

type Adapter struct {
	config    *Config
	approvals ApprovalReader
	gate      CreditGate
	logger    logger.Logger
}

func NewAdapter(config *Config, approvals ApprovalReader, gate CreditGate, log logger.Logger) *Adapter {
	if config == nil {
		config = LoadConfig()
	}
	return &Adapter{
		config:    config,
		approvals: approvals,
		gate:      gate,
		logger:    logger.Component(log, Name),
	}
}

func (a *Adapter) Name() string { return Name }

// Run returns at most one notification. Only the approval fetch reports an
// error; every billing problem fails closed with an empty result so that the
// caller never retries a charge within the same pass.
func (a *Adapter) Run(ctx context.Context, userID string, prev []models.Notification) ([]models.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	rec, err := a.approvals.GetApprovalRecord(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApprovalFetchFailed, err)
	}
	if rec == nil || rec.Message == "" {
		return nil, nil
	}

	payload, ok := ParsePayload(rec.Message)
	if !ok {
		return nil, nil
	}

	eventID := payload.EventID()
	log := a.logger.WithFields(map[string]interface{}{
		"userId":  userID,
		"eventId": eventID,
	})

	if !a.ensurePaid(ctx, log, userID, payload) {
		return nil, nil
	}

	n := models.Notification{
		ID:              eventID,
		BaseID:          eventID,
		Type:            models.TypeCandidateStatus,
		Title:           "Candidate status updated",
		Message:         renderMessage(payload),
		Timestamp:       rec.UpdatedAt,
		SourceUpdatedAt: rec.UpdatedAt,
		Paid:            true,
		CandidateUID:    payload.CandidateUID,
		CandidateName:   payload.CandidateName,
		NewStatus:       payload.NewStatus,
	}
	if at, ok := payload.EventTime(); ok {
		n.Timestamp = at
	}
	for _, p := range prev {
		if p.ID == eventID {
			n.Read = p.Read
			break
		}
	}

	return []models.Notification{n}, nil
}

// ensurePaid reports whether the event is paid for, charging it if needed.
func (a *Adapter) ensurePaid(ctx context.Context, log logger.Logger, userID string, p *Payload) bool {
	eventID := p.EventID()

	charged, err := a.gate.AlreadyCharged(ctx, userID, eventID)
	if err != nil {
		log.Warn("charged-set lookup failed, withholding notification", map[string]interface{}{"error": err})
		return false
	}
	if charged {
		return true
	}

	balance, err := a.gate.Balance(ctx, userID)
	if err != nil {
		log.Warn("balance check failed, withholding notification", map[string]interface{}{"error": err})
		return false
	}
	if balance < a.gate.Cost() {
		log.Info("insufficient credits for candidate status", map[string]interface{}{
			"balance": balance,
			"cost":    a.gate.Cost(),
		})
		return false
	}

	_, err = a.gate.Charge(ctx, ledger.Charge{
		EventID:        eventID,
		PayerID:        userID,
		OrganizationID: p.OrganizationID,
		CandidateUID:   p.CandidateUID,
		Reason:         fmt.Sprintf("candidate status view: %s", p.NewStatus),
	})
	switch {
	case err == nil, errors.Is(err, ledger.ErrAlreadyCharged):
		return true
	case errors.Is(err, ledger.ErrInsufficientCredits):
		log.Info("credits ran out before deduction", nil)
		return false
	default:
		log.Error("candidate status charge failed", map[string]interface{}{"error": err})
		return false
	}
}

func renderMessage(p *Payload) string {
	name := p.CandidateName
	if name == "" {
		name = "A candidate"
	}
	return fmt.Sprintf("%s is now %s", name, p.NewStatus)
}
