// Package resilience provides the retry policy used by the request pipeline.
//
// The policy is a pure decision function: RetryConfig.Decide maps an attempt
// number and error to a retry-or-stop decision and the delay to use. Retry is
// the generic executor that runs a function under a policy with context-aware
// backoff sleeps.
package resilience
