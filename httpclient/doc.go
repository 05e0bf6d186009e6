// Package httpclient implements the request execution pipeline for the
// Venice.ai API.
//
// A Client turns one logical API call into a resilient network interaction:
// it applies authentication, sends attempts through the underlying transport,
// records rate-limit headers from every response, and retries transient
// failures under the policy in package resilience. Streaming calls skip the
// retry loop and hand the open body to an SSE reader.
//
// The pipeline treats request and response bodies as opaque serializable
// values; it only inspects HTTP-level metadata (status codes and headers).
package httpclient
