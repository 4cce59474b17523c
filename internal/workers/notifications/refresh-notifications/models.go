package refreshnotifications

import "time"

type Input struct {
	UserID string `json:"userId"`
}

type Output struct {
	UserID      string    `json:"userId"`
	Total       int       `json:"total"`
	Unread      int       `json:"unread"`
	LoadFailed  bool      `json:"loadFailed"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

const inputSchema = `{
	"type": "object",
	"required": ["userId"],
	"properties": {
		"userId": {"type": "string", "minLength": 1}
	}
}`
