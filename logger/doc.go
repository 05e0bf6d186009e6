// Package logger provides structured logging for the SDK on top of zerolog.
//
// The SDK never logs by default: components accept an optional *Logger and
// stay silent when it is nil. Callers that want request/retry visibility
// construct one with New or NewFromEnv and pass it through client options.
package logger
