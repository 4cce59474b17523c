// Package adminstatus turns the admin review state of a job provider's
// profile into at most one active notification.
package adminstatus

import (
	"context"
	"errors"
	"fmt"

	statuschange "notification-engine/internal/adapters/status-change"
	"notification-engine/internal/adapters/supersede"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

const Name = "admin-status"

var ErrApprovalFetchFailed = errors.New("SOURCE_FETCH_FAILED")

// Tier is one admin state, listed in priority order.
type Tier string

const (
	TierMessage  Tier = "message"
	TierApproved Tier = "approved"
	TierRejected Tier = "rejected"
	TierPending  Tier = "pending"
)

var tiers = []Tier{TierMessage, TierApproved, TierRejected, TierPending}

func BaseID(tier Tier, userID string) string {
	return "admin-" + string(tier) + "-" + userID
}

type ApprovalReader interface {
	GetApprovalRecord(ctx context.Context, userID string) (*models.ApprovalRecord, error)
}

type Adapter struct {
	config    *Config
	approvals ApprovalReader
	resolver  *supersede.Resolver
	logger    logger.Logger
}

func NewAdapter(config *Config, approvals ApprovalReader, resolver *supersede.Resolver, log logger.Logger) *Adapter {
	if config == nil {
		config = LoadConfig()
	}
	return &Adapter{
		config:    config,
		approvals: approvals,
		resolver:  resolver,
		logger:    logger.Component(log, Name),
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Run(ctx context.Context, userID string, prev []models.Notification) ([]models.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	rec, err := a.approvals.GetApprovalRecord(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApprovalFetchFailed, err)
	}

	var out []models.Notification
	activeBase := ""

	if rec != nil {
		if tier, ok := ActiveTier(rec); ok {
			fresh := render(tier, rec, userID)
			activeBase = fresh.BaseID
			out = append(out, a.resolver.Resolve(ctx, prev, fresh)...)
		}
	}

	// tiers that are no longer active stay visible until the user deletes them
	for _, tier := range tiers {
		base := BaseID(tier, userID)
		if base == activeBase {
			continue
		}
		out = append(out, supersede.PriorCopies(prev, base)...)
	}

	return out, nil
}

// ActiveTier picks the single tier that applies to rec. A message carrying
// the candidate status discriminator is never shown as admin text, even when
// the payload is incomplete.
func ActiveTier(rec *models.ApprovalRecord) (Tier, bool) {
	if rec.Message != "" && !statuschange.IsStatusPayload(rec.Message) {
		return TierMessage, true
	}
	switch {
	case rec.Approved:
		return TierApproved, true
	case rec.Rejected:
		return TierRejected, true
	default:
		return TierPending, true
	}
}

func render(tier Tier, rec *models.ApprovalRecord, userID string) models.Notification {
	n := models.Notification{
		BaseID:          BaseID(tier, userID),
		Type:            models.TypeAdmin,
		Timestamp:       rec.UpdatedAt,
		SourceUpdatedAt: rec.UpdatedAt,
	}
	switch tier {
	case TierMessage:
		n.Title = "Message from admin"
		n.Message = rec.Message
	case TierApproved:
		n.Title = "Profile approved"
		n.Message = "Your profile has been approved. You can now post jobs and review candidates."
	case TierRejected:
		n.Title = "Profile rejected"
		n.Message = "Your profile was not approved. Please review your details and resubmit."
	case TierPending:
		n.Title = "Profile under review"
		n.Message = "Your profile is awaiting admin review."
	}
	return n
}
