package data

import (
	"time"
)

type Exchange struct {
	UserQuery         string    `json:"user_query"`
	AssistantResponse string    `json:"assistant_response"`
	Timestamp         time.Time `json:"timestamp"`
}

type UsageRecord struct {
	Date             string `json:"date"`
	Requests         int    `json:"requests"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// SessionState is everything kept for one session id. Conversation and Usage
// live and die together with the state.
type SessionState struct {
	Id           string      `json:"id"`
	Created      time.Time   `json:"created"`
	LastActivity time.Time   `json:"last_activity"`
	Conversation []Exchange  `json:"conversation"`
	Usage        UsageRecord `json:"usage"`
}

// Clone returns a copy that shares no slice backing with s.
func (s *SessionState) Clone() *SessionState {
	c := *s
	c.Conversation = append([]Exchange(nil), s.Conversation...)
	return &c
}

func (s *SessionState) expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastActivity) > ttl
}
