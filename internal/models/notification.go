package models

import (
	"strconv"
	"time"
)

type NotificationType string

const (
	TypeAdmin           NotificationType = "admin"
	TypeApplication     NotificationType = "application"
	TypeCandidateStatus NotificationType = "candidate_status"
	TypeMessage         NotificationType = "message"
	TypeJob             NotificationType = "job"
	TypeSystem          NotificationType = "system"
)

// Notification is one entry of a user's aggregate. Identity is the pair
// (BaseID, Generation); ID is derived from it and never parsed back.
type Notification struct {
	ID              string           `json:"id"`
	BaseID          string           `json:"baseId"`
	Generation      int64            `json:"generation"`
	Type            NotificationType `json:"type"`
	Title           string           `json:"title"`
	Message         string           `json:"message"`
	Timestamp       time.Time        `json:"timestamp"`
	Read            bool             `json:"read"`
	SourceUpdatedAt time.Time        `json:"sourceUpdatedAt,omitempty"`
	Paid            bool             `json:"paid,omitempty"`

	// application
	JobID      string `json:"jobId,omitempty"`
	JobTitle   string `json:"jobTitle,omitempty"`
	MatchCount int    `json:"matchCount,omitempty"`

	// candidate_status
	CandidateUID  string `json:"candidateUid,omitempty"`
	CandidateName string `json:"candidateName,omitempty"`
	NewStatus     string `json:"newStatus,omitempty"`
}

// NotificationID renders the public id for a base id and generation.
func NotificationID(baseID string, generation int64) string {
	if generation == 0 {
		return baseID
	}
	return baseID + "-" + strconv.FormatInt(generation, 10)
}

// WithGeneration returns a copy carrying the given generation and matching ID.
func (n Notification) WithGeneration(generation int64) Notification {
	n.Generation = generation
	n.ID = NotificationID(n.BaseID, generation)
	return n
}

// Supersedable reports whether the entry is versioned against its source
// record and therefore tracked with a last-seen marker.
func (n Notification) Supersedable() bool {
	return (n.Type == TypeAdmin || n.Type == TypeApplication) && !n.SourceUpdatedAt.IsZero()
}

// InstanceKey identifies one observed version of a source record. Copies
// that share it are the same instance for read and delete bookkeeping.
func (n Notification) InstanceKey() string {
	if n.Supersedable() {
		return n.BaseID + "@" + strconv.FormatInt(n.SourceUpdatedAt.UnixMicro(), 10)
	}
	return n.ID
}
