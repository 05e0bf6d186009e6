// Package webhook verifies signed webhook payloads delivered by the API.
//
// Each delivery carries a hex-encoded HMAC-SHA256 signature and a Unix
// timestamp header. The signature covers "<timestamp>.<body>" keyed by the
// shared webhook secret. Verification is stateless and uses a constant-time
// comparison; a timestamp outside the tolerance window is rejected to block
// replays.
package webhook
