package services

import (
	"fmt"

	"grokchat/data"
)

type Quota struct {
	MaxRequests         int
	MaxCompletionTokens int
}

var DefaultQuota = Quota{
	MaxRequests:         50,
	MaxCompletionTokens: 25000,
}

type Decision struct {
	Allowed bool
	Reason  string
}

type RateLimiter struct {
	Quota Quota
}

// Check decides whether one more request fits in today's quota. It expects the
// view returned by UsageTracker.Current.
func (l RateLimiter) Check(usage data.UsageRecord) Decision {
	if usage.Requests >= l.Quota.MaxRequests {
		return Decision{Reason: fmt.Sprintf("Daily request limit reached (%d). Please try again tomorrow.", l.Quota.MaxRequests)}
	}
	if usage.CompletionTokens >= l.Quota.MaxCompletionTokens {
		return Decision{Reason: "Daily token limit reached. Please try again tomorrow."}
	}
	return Decision{Allowed: true}
}
