// Package validation provides input validation for SDK configuration and
// request payloads.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection.
//
// # Struct Tag Validation
//
//	type ChatRequest struct {
//	    Model    string `json:"model" validate:"required"`
//	    MaxTokens int   `json:"max_tokens" validate:"omitempty,gt=0"`
//	}
//	err := validation.Validate(req)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Check(model != "", "model", "model is required")
//	err := v.Error()
package validation
