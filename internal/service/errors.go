// Package service contains the task application service: validation,
// authorization, cache maintenance, and audit logging around the task stores.
package service

import "errors"

// ErrForbidden indicates the principal exists and the target exists, but the
// principal may not act on it.
var ErrForbidden = errors.New("forbidden")
