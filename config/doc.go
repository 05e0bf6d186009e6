// Package config loads SDK configuration from YAML files, .env files, and
// VENICE_* environment variables, in increasing order of precedence.
package config
