package aggregator

import (
	"testing"
	"time"

	"notification-engine/internal/models"

	"github.com/stretchr/testify/assert"
)

func createTestList() []models.Notification {
	return []models.Notification{
		{ID: "a", Type: models.TypeAdmin, Timestamp: t0, Read: true},
		{ID: "b", Type: models.TypeApplication, Timestamp: t0.Add(2 * time.Hour)},
		{ID: "c", Type: models.TypeCandidateStatus, Timestamp: t0.Add(time.Hour)},
		{ID: "d", Type: models.TypeApplication, Timestamp: t0.Add(time.Hour), Read: true},
		{ID: "e", Type: models.TypeAdmin, Timestamp: t0.Add(-time.Hour)},
	}
}

func TestFilterAndSort_All(t *testing.T) {
	list := createTestList()
	out := FilterAndSort(list, FilterAll)

	assert.Len(t, out, len(list))
	for i := 1; i < len(out); i++ {
		assert.False(t, out[i].Timestamp.After(out[i-1].Timestamp))
	}
	// equal timestamps keep input order
	assert.Equal(t, []string{"b", "c", "d", "a", "e"}, ids(out))
}

func TestFilterAndSort_Unread(t *testing.T) {
	out := FilterAndSort(createTestList(), FilterUnread)

	assert.Equal(t, []string{"b", "c", "e"}, ids(out))
	for _, n := range out {
		assert.False(t, n.Read)
	}
}

func TestFilterAndSort_ByType(t *testing.T) {
	tests := []struct {
		filter string
		want   []string
	}{
		{string(models.TypeApplication), []string{"b", "d"}},
		{string(models.TypeAdmin), []string{"a", "e"}},
		{string(models.TypeCandidateStatus), []string{"c"}},
		{string(models.TypeSystem), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterAndSort(createTestList(), tt.filter)))
		})
	}
}

func TestFilterAndSort_DoesNotMutateInput(t *testing.T) {
	list := createTestList()
	FilterAndSort(list, FilterAll)
	assert.Equal(t, createTestList(), list)
}

func TestUnreadCount(t *testing.T) {
	assert.Equal(t, 3, UnreadCount(createTestList()))
	assert.Equal(t, 0, UnreadCount(nil))
}
