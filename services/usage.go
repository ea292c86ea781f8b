package services

import (
	"time"

	"grokchat/data"
)

const usageDateLayout = "2006-01-02"

// UsageTracker keeps the per-session daily counters. A record dated before
// today counts as empty: reads return a zeroed view, writes start over.
type UsageTracker struct {
	Now func() time.Time
}

func (t UsageTracker) today() string {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	return now().Format(usageDateLayout)
}

// Record returns rec with one more request and the given tokens added.
func (t UsageTracker) Record(rec data.UsageRecord, promptTokens, completionTokens int) data.UsageRecord {
	today := t.today()
	if rec.Date != today {
		rec = data.UsageRecord{Date: today}
	}

	rec.Requests++
	rec.PromptTokens += promptTokens
	rec.CompletionTokens += completionTokens
	return rec
}

// Current returns rec if it is dated today and a zeroed record otherwise.
func (t UsageTracker) Current(rec data.UsageRecord) data.UsageRecord {
	today := t.today()
	if rec.Date != today {
		return data.UsageRecord{Date: today}
	}
	return rec
}
