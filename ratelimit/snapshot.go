package ratelimit

import (
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// HeaderNames maps snapshot fields to the response header names carrying
// them. The names are upstream-API conventions, not protocol constants, so
// they are configuration.
type HeaderNames struct {
	LimitRequests     string `yaml:"limit_requests" mapstructure:"limit_requests"`
	RemainingRequests string `yaml:"remaining_requests" mapstructure:"remaining_requests"`
	ResetRequests     string `yaml:"reset_requests" mapstructure:"reset_requests"`
	LimitTokens       string `yaml:"limit_tokens" mapstructure:"limit_tokens"`
	RemainingTokens   string `yaml:"remaining_tokens" mapstructure:"remaining_tokens"`
	ResetTokens       string `yaml:"reset_tokens" mapstructure:"reset_tokens"`
	// RetryAfter names the header carrying the explicit reset hint on a 429.
	RetryAfter string `yaml:"retry_after" mapstructure:"retry_after"`
	BalanceVCU string `yaml:"balance_vcu" mapstructure:"balance_vcu"`
	BalanceUSD string `yaml:"balance_usd" mapstructure:"balance_usd"`
}

// DefaultHeaderNames returns the header names the Venice.ai API uses.
func DefaultHeaderNames() HeaderNames {
	return HeaderNames{
		LimitRequests:     "x-ratelimit-limit-requests",
		RemainingRequests: "x-ratelimit-remaining-requests",
		ResetRequests:     "x-ratelimit-reset-requests",
		LimitTokens:       "x-ratelimit-limit-tokens",
		RemainingTokens:   "x-ratelimit-remaining-tokens",
		ResetTokens:       "x-ratelimit-reset-tokens",
		RetryAfter:        "retry-after",
		BalanceVCU:        "x-venice-balance-vcu",
		BalanceUSD:        "x-venice-balance-usd",
	}
}

// Snapshot is an immutable point-in-time view of rate-limit state parsed
// from one response's headers. Fields are nil when the header was absent.
type Snapshot struct {
	// LimitRequests is the request budget per window.
	LimitRequests *int64
	// RemainingRequests is the number of requests left in the window.
	RemainingRequests *int64
	// ResetRequests is when the request budget resets.
	ResetRequests *time.Time
	// LimitTokens is the token budget per window.
	LimitTokens *int64
	// RemainingTokens is the number of tokens left in the window.
	RemainingTokens *int64
	// ResetTokens is when the token budget resets.
	ResetTokens *time.Time
	// BalanceVCU is the account's remaining compute-unit balance.
	BalanceVCU *float64
	// BalanceUSD is the account's remaining USD balance.
	BalanceUSD *float64
}

// ParseSnapshot builds a Snapshot from one response's headers. The request
// reset header carries an absolute Unix timestamp; the token reset header
// carries seconds-until-reset relative to now, matching the upstream API.
func ParseSnapshot(headers map[string]string, names HeaderNames, now time.Time) *Snapshot {
	s := &Snapshot{
		LimitRequests:     headerInt(headers, names.LimitRequests),
		RemainingRequests: headerInt(headers, names.RemainingRequests),
		LimitTokens:       headerInt(headers, names.LimitTokens),
		RemainingTokens:   headerInt(headers, names.RemainingTokens),
		BalanceVCU:        headerFloat(headers, names.BalanceVCU),
		BalanceUSD:        headerFloat(headers, names.BalanceUSD),
	}
	if v := headerInt(headers, names.ResetRequests); v != nil {
		t := time.Unix(*v, 0)
		s.ResetRequests = &t
	}
	if v := headerInt(headers, names.ResetTokens); v != nil {
		t := now.Add(time.Duration(*v) * time.Second)
		s.ResetTokens = &t
	}
	return s
}

// Exhausted reports whether the snapshot shows zero remaining capacity for
// either requests or tokens. An absent header counts as capacity.
func (s *Snapshot) Exhausted() bool {
	if s == nil {
		return false
	}
	if s.RemainingRequests != nil && *s.RemainingRequests == 0 {
		return true
	}
	if s.RemainingTokens != nil && *s.RemainingTokens == 0 {
		return true
	}
	return false
}

// NextReset returns the earliest reset time that lies after now.
func (s *Snapshot) NextReset(now time.Time) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	var reset time.Time
	for _, t := range []*time.Time{s.ResetRequests, s.ResetTokens} {
		if t == nil || !t.After(now) {
			continue
		}
		if reset.IsZero() || t.Before(reset) {
			reset = *t
		}
	}
	return reset, !reset.IsZero()
}

// RetryAfterHint parses the explicit 429 reset hint from headers. The value
// may be a delay in seconds, an absolute Unix timestamp, or an HTTP-date;
// absolute forms are converted to a delay relative to now.
func RetryAfterHint(headers map[string]string, names HeaderNames, now time.Time) time.Duration {
	v := headerValue(headers, names.RetryAfter)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		// RFC 9110 also allows an HTTP-date here.
		t, err := http.ParseTime(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		if d := t.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	if n <= 0 {
		return 0
	}
	// Values beyond a year's worth of seconds are Unix timestamps.
	if n > 365*24*3600 {
		d := time.Unix(n, 0).Sub(now)
		if d < 0 {
			return 0
		}
		return d
	}
	return time.Duration(n) * time.Second
}

// headerValue looks up name in a flattened header map, tolerating exact,
// canonical MIME, and lowercase key forms.
func headerValue(headers map[string]string, name string) string {
	if name == "" {
		return ""
	}
	if v, ok := headers[name]; ok {
		return v
	}
	if v, ok := headers[textproto.CanonicalMIMEHeaderKey(name)]; ok {
		return v
	}
	return headers[strings.ToLower(name)]
}

func headerInt(headers map[string]string, name string) *int64 {
	v := headerValue(headers, name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func headerFloat(headers map[string]string, name string) *float64 {
	v := headerValue(headers, name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil
	}
	return &f
}
