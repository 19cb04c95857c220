// Package ratelimiter provides the admission-control algorithms behind the
// orchestrator's control API. The gin middleware picks one implementation by
// name from the middleware configuration and consults it before a task
// submission reaches a handler.
package ratelimiter

// RateLimiter is the single capability the control API middleware needs:
// Allow reports whether one more request may pass right now.
type RateLimiter interface {
	// Allow returns true if the request is allowed, otherwise returns false.
	Allow() bool
}
