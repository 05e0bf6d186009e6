// Package ratelimit tracks the rate-limit state reported by API response
// headers.
//
// Every response carries a point-in-time view of the caller's remaining
// request and token budget. Tracker keeps the most recent Snapshot behind an
// atomic pointer: each update replaces the prior value wholesale, so a
// snapshot never mixes fields from two responses. Throttle optionally blocks
// a caller until the reported reset time when the budget is exhausted.
package ratelimit
