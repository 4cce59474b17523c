package statuschange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		wantOK bool
		wantTS string
	}{
		{
			name:   "numeric timestamp",
			raw:    `{"type":"candidate_status_change","candidateUid":"c1","candidateName":"Asha","newStatus":"shortlisted","timestamp":1717243200000,"organizationId":"org-1"}`,
			wantOK: true,
			wantTS: "1717243200000",
		},
		{
			name:   "string timestamp with surrounding whitespace",
			raw:    "  {\"type\":\"candidate_status_change\",\"candidateUid\":\"c1\",\"newStatus\":\"hired\",\"timestamp\":\"2024-06-01T12:00:00Z\"}\n",
			wantOK: true,
			wantTS: "2024-06-01T12:00:00Z",
		},
		{name: "plain admin text", raw: "Please update your company logo"},
		{name: "empty", raw: ""},
		{name: "other discriminator", raw: `{"type":"profile_note","candidateUid":"c1","newStatus":"x","timestamp":1}`},
		{name: "missing candidate", raw: `{"type":"candidate_status_change","newStatus":"x","timestamp":1}`},
		{name: "empty candidate", raw: `{"type":"candidate_status_change","candidateUid":"","newStatus":"x","timestamp":1}`},
		{name: "missing timestamp", raw: `{"type":"candidate_status_change","candidateUid":"c1","newStatus":"x"}`},
		{name: "truncated json", raw: `{"type":"candidate_status_change","candidateUid":"c1"`},
		{name: "json array", raw: `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := ParsePayload(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				require.NotNil(t, p)
				assert.Equal(t, tt.wantTS, p.Timestamp)
				assert.Equal(t, "candidate-status-c1-"+tt.wantTS, p.EventID())
			} else {
				assert.Nil(t, p)
			}
		})
	}
}

func TestIsStatusPayload(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"complete payload", `{"type":"candidate_status_change","candidateUid":"c1","newStatus":"hired","timestamp":1}`, true},
		{"missing timestamp", `{"type":"candidate_status_change","candidateUid":"c1","newStatus":"hired"}`, true},
		{"empty candidate", ` {"type":"candidate_status_change","candidateUid":""}`, true},
		{"other discriminator", `{"type":"profile_note"}`, false},
		{"no discriminator", `{"candidateUid":"c1"}`, false},
		{"plain admin text", "Welcome aboard", false},
		{"truncated json", `{"type":"candidate_status_change"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStatusPayload(tt.raw))
		})
	}
}

func TestPayload_EventTime(t *testing.T) {
	tests := []struct {
		ts     string
		want   time.Time
		wantOK bool
	}{
		{"1717243200000", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), true},
		{"1717243200", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), true},
		{"2024-06-01T12:00:00Z", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), true},
		{"yesterday", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.ts, func(t *testing.T) {
			got, ok := (&Payload{Timestamp: tt.ts}).EventTime()
			assert.Equal(t, tt.wantOK, ok)
			assert.True(t, tt.want.Equal(got))
		})
	}
}
