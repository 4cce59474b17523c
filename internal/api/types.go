package api

import (
	"time"

	"notification-engine/internal/aggregator"
	"notification-engine/internal/models"

	"github.com/gin-gonic/gin"
)

type listResponse struct {
	UserID        string                `json:"userId"`
	Notifications []models.Notification `json:"notifications"`
	Total         int                   `json:"total"`
	Unread        int                   `json:"unread"`
	LoadFailed    bool                  `json:"loadFailed"`
	RefreshedAt   time.Time             `json:"refreshedAt"`
	Warning       string                `json:"warning,omitempty"`
}

// newListResponse counts unread over the whole aggregate, not the filtered
// view, so badges stay consistent across filters.
func newListResponse(st aggregator.State, view []models.Notification) *listResponse {
	if view == nil {
		view = []models.Notification{}
	}
	return &listResponse{
		UserID:        st.UserID,
		Notifications: view,
		Total:         len(st.Notifications),
		Unread:        aggregator.UnreadCount(st.Notifications),
		LoadFailed:    st.LoadFailed,
		RefreshedAt:   st.RefreshedAt,
	}
}

func errorResponse(err error) gin.H {
	return gin.H{"error": err.Error()}
}
