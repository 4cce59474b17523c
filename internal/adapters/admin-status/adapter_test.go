package adminstatus

import (
	"context"
	"errors"
	"testing"
	"time"

	"notification-engine/internal/adapters/supersede"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
	"notification-engine/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Helpers
// ==========================

var (
	t0      = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	t1      = t0.Add(26 * time.Hour)
	testNow = time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)
)

type stubApprovals struct {
	rec *models.ApprovalRecord
	err error
}

func (s *stubApprovals) GetApprovalRecord(context.Context, string) (*models.ApprovalRecord, error) {
	return s.rec, s.err
}

func createTestAdapter(t *testing.T, approvals *stubApprovals, markers store.MarkerStore) *Adapter {
	t.Helper()
	if markers == nil {
		markers = store.NewMemoryMarkerStore()
	}
	resolver := supersede.NewResolver(markers, logger.NewTestLogger(t)).
		WithClock(func() time.Time { return testNow })
	return NewAdapter(nil, approvals, resolver, logger.NewTestLogger(t))
}

func ids(list []models.Notification) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.ID)
	}
	return out
}

// ==========================
// Tier selection
// ==========================

func TestActiveTier(t *testing.T) {
	payload := `{"type":"candidate_status_change","candidateUid":"c1","newStatus":"hired","timestamp":1}`

	tests := []struct {
		name string
		rec  models.ApprovalRecord
		want Tier
	}{
		{"message wins over approval", models.ApprovalRecord{Approved: true, Message: "Hello"}, TierMessage},
		{"approved", models.ApprovalRecord{Approved: true}, TierApproved},
		{"rejected", models.ApprovalRecord{Rejected: true}, TierRejected},
		{"approved wins over rejected", models.ApprovalRecord{Approved: true, Rejected: true}, TierApproved},
		{"pending", models.ApprovalRecord{}, TierPending},
		{"status payload is not an admin message", models.ApprovalRecord{Approved: true, Message: payload}, TierApproved},
		{"incomplete status payload is not an admin message", models.ApprovalRecord{Approved: true,
			Message: `{"type":"candidate_status_change","candidateUid":"c1","newStatus":"hired"}`}, TierApproved},
		{"empty candidate status payload while pending", models.ApprovalRecord{
			Message: `{"type":"candidate_status_change","candidateUid":"","timestamp":1}`}, TierPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ActiveTier(&tt.rec)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ==========================
// Run
// ==========================

func TestRun_NewApproval(t *testing.T) {
	a := createTestAdapter(t, &stubApprovals{rec: &models.ApprovalRecord{Approved: true, UpdatedAt: t0}}, nil)

	out, err := a.Run(context.Background(), "u1", nil)
	require.NoError(t, err)
	require.Len(t, out, 1)

	n := out[0]
	assert.Equal(t, "admin-approved-u1", n.ID)
	assert.Equal(t, models.TypeAdmin, n.Type)
	assert.Equal(t, "Profile approved", n.Title)
	assert.False(t, n.Read)
	assert.True(t, t0.Equal(n.SourceUpdatedAt))
}

func TestRun_NoRecord(t *testing.T) {
	a := createTestAdapter(t, &stubApprovals{}, nil)

	out, err := a.Run(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRun_FetchError(t *testing.T) {
	a := createTestAdapter(t, &stubApprovals{err: errors.New("timeout")}, nil)

	out, err := a.Run(context.Background(), "u1", nil)
	assert.ErrorIs(t, err, ErrApprovalFetchFailed)
	assert.Nil(t, out)
}

func TestRun_PreReadFromMarker(t *testing.T) {
	markers := store.NewMemoryMarkerStore()
	require.NoError(t, markers.MarkSeen(context.Background(), "admin-approved-u1", t0))

	a := createTestAdapter(t, &stubApprovals{rec: &models.ApprovalRecord{Approved: true, UpdatedAt: t0}}, markers)

	out, err := a.Run(context.Background(), "u1", nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Read)
}

func TestRun_SupersedesChangedRecord(t *testing.T) {
	approvals := &stubApprovals{rec: &models.ApprovalRecord{Message: "Please add a logo", UpdatedAt: t0}}
	a := createTestAdapter(t, approvals, nil)
	ctx := context.Background()

	first, err := a.Run(ctx, "u1", nil)
	require.NoError(t, err)
	require.Len(t, first, 1)
	first[0].Read = true

	approvals.rec = &models.ApprovalRecord{Message: "Logo received, thanks", UpdatedAt: t1}
	second, err := a.Run(ctx, "u1", first)
	require.NoError(t, err)
	require.Len(t, second, 2)

	assert.Equal(t, first[0], second[0])
	assert.Equal(t, "admin-message-u1", second[1].BaseID)
	assert.Equal(t, testNow.UnixMilli(), second[1].Generation)
	assert.False(t, second[1].Read)
	assert.Equal(t, "Logo received, thanks", second[1].Message)

	// same record again: both copies re-emitted untouched
	third, err := a.Run(ctx, "u1", second)
	require.NoError(t, err)
	assert.Equal(t, second, third)
}

func TestRun_UnchangedRecordKeepsReadState(t *testing.T) {
	approvals := &stubApprovals{rec: &models.ApprovalRecord{Approved: true, UpdatedAt: t0}}
	a := createTestAdapter(t, approvals, nil)

	first, err := a.Run(context.Background(), "u1", nil)
	require.NoError(t, err)
	first[0].Read = true

	second, err := a.Run(context.Background(), "u1", first)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.True(t, second[0].Read)
}

func TestRun_CarriesForwardInactiveTiers(t *testing.T) {
	approvals := &stubApprovals{rec: &models.ApprovalRecord{UpdatedAt: t0}}
	a := createTestAdapter(t, approvals, nil)
	ctx := context.Background()

	first, err := a.Run(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin-pending-u1"}, ids(first))

	approvals.rec = &models.ApprovalRecord{Approved: true, UpdatedAt: t1}
	second, err := a.Run(ctx, "u1", first)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"admin-approved-u1", "admin-pending-u1"}, ids(second))
}

func TestRun_IgnoresOtherUsersEntries(t *testing.T) {
	a := createTestAdapter(t, &stubApprovals{rec: &models.ApprovalRecord{Approved: true, UpdatedAt: t0}}, nil)
	prev := []models.Notification{{ID: "admin-pending-u2", BaseID: "admin-pending-u2", Type: models.TypeAdmin}}

	out, err := a.Run(context.Background(), "u1", prev)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin-approved-u1"}, ids(out))
}
