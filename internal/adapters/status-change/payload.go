package statuschange

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"notification-engine/internal/common/validation"
)

// PayloadType discriminates candidate status payloads from plain admin text.
const PayloadType = "candidate_status_change"

var payloadSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["type", "candidateUid", "newStatus", "timestamp"],
	"properties": {
		"type": {"type": "string", "enum": ["candidate_status_change"]},
		"candidateUid": {"type": "string", "minLength": 1},
		"candidateName": {"type": "string"},
		"newStatus": {"type": "string", "minLength": 1},
		"organizationId": {"type": "string"},
		"timestamp": {"type": ["string", "number"]}
	}
}`)

var discriminatorSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["type"],
	"properties": {
		"type": {"type": "string", "enum": ["candidate_status_change"]}
	}
}`)

// IsStatusPayload reports whether raw carries the candidate status
// discriminator, whether or not the rest of the payload is usable.
func IsStatusPayload(raw string) bool {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		return false
	}
	res, err := discriminatorSchema.ValidateString(raw)
	return err == nil && res.Valid
}

// Payload is a candidate status change carried in an approval record's
// message field.
type Payload struct {
	Type           string
	CandidateUID   string
	CandidateName  string
	NewStatus      string
	OrganizationID string
	// Timestamp is the payload timestamp as written by the producer.
	Timestamp string
}

type rawPayload struct {
	Type           string          `json:"type"`
	CandidateUID   string          `json:"candidateUid"`
	CandidateName  string          `json:"candidateName"`
	NewStatus      string          `json:"newStatus"`
	OrganizationID string          `json:"organizationId"`
	Timestamp      json.RawMessage `json:"timestamp"`
}

// ParsePayload reports whether raw is a candidate status payload. Plain text,
// other JSON and payloads with the wrong discriminator all return false.
func ParsePayload(raw string) (*Payload, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		return nil, false
	}

	res, err := payloadSchema.ValidateString(raw)
	if err != nil || !res.Valid {
		return nil, false
	}

	var p rawPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false
	}

	ts := string(p.Timestamp)
	if unquoted, err := strconv.Unquote(ts); err == nil {
		ts = unquoted
	}
	if ts == "" {
		return nil, false
	}

	return &Payload{
		Type:           p.Type,
		CandidateUID:   p.CandidateUID,
		CandidateName:  p.CandidateName,
		NewStatus:      p.NewStatus,
		OrganizationID: p.OrganizationID,
		Timestamp:      ts,
	}, true
}

// EventID is the stable identity used for billing and as the notification id.
func (p *Payload) EventID() string {
	return "candidate-status-" + p.CandidateUID + "-" + p.Timestamp
}

// EventTime interprets the timestamp as epoch milliseconds, epoch seconds or
// RFC 3339. ok is false when none apply.
func (p *Payload) EventTime() (time.Time, bool) {
	if n, err := strconv.ParseFloat(p.Timestamp, 64); err == nil {
		if n < 1e12 {
			return time.Unix(int64(n), 0).UTC(), true
		}
		return time.UnixMilli(int64(n)).UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
