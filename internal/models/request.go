// Package models - API request types and input validation.
package models

import "errors"

// CheckRequest is the body of POST /api/v1/check. Key identifies the budget
// to charge (client + resource, opaque to the engine). Policy names a
// registered policy; empty means the configured default.
type CheckRequest struct {
	Key    string `json:"key"`
	Policy string `json:"policy,omitempty"`
}

// Validate checks required fields and size bounds.
func (r *CheckRequest) Validate() error {
	if r.Key == "" {
		return errors.New("key is required")
	}
	if len(r.Key) > 512 {
		return errors.New("key must be at most 512 bytes")
	}
	if len(r.Policy) > 128 {
		return errors.New("policy name must be at most 128 bytes")
	}
	return nil
}
