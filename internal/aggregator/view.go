package aggregator

import (
	"sort"

	"notification-engine/internal/models"
)

const (
	FilterAll    = "all"
	FilterUnread = "unread"
)

// FilterAndSort returns a new slice holding the entries selected by filter,
// newest first. filter is "all", "unread" or a notification type; anything
// else selects nothing. Entries with equal timestamps keep their order.
func FilterAndSort(list []models.Notification, filter string) []models.Notification {
	out := make([]models.Notification, 0, len(list))
	for _, n := range list {
		switch filter {
		case FilterAll:
		case FilterUnread:
			if n.Read {
				continue
			}
		default:
			if string(n.Type) != filter {
				continue
			}
		}
		out = append(out, n)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func UnreadCount(list []models.Notification) int {
	count := 0
	for _, n := range list {
		if !n.Read {
			count++
		}
	}
	return count
}
