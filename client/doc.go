// Package client is the SDK entry point for the Venice.ai API.
//
// A Client wraps the request pipeline with typed helpers, streaming, cursor
// pagination, and access to rate-limit state:
//
//	c, err := client.New("sk-...")
//	if err != nil { ... }
//	resp, err := client.Post[ChatResponse](c, ctx, "/chat/completions", req)
//
// Request and response payloads are caller-defined types; the SDK does not
// model the schemas of individual capabilities.
package client
