package services

import (
	"grokchat/data"
)

const (
	MaxExchanges = 10
	PromptWindow = 3
)

// AppendExchange adds ex to the end of log and drops the oldest entries so at
// most MaxExchanges remain. The returned slice never shares storage with log.
func AppendExchange(log []data.Exchange, ex data.Exchange) []data.Exchange {
	next := make([]data.Exchange, 0, len(log)+1)
	next = append(next, log...)
	next = append(next, ex)
	if len(next) > MaxExchanges {
		next = next[len(next)-MaxExchanges:]
	}
	return next
}

// RecentExchanges returns the last k exchanges, oldest first.
func RecentExchanges(log []data.Exchange, k int) []data.Exchange {
	if k <= 0 {
		return nil
	}
	if k > len(log) {
		k = len(log)
	}
	return log[len(log)-k:]
}
