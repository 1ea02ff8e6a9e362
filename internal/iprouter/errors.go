// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package iprouter

import (
	"errors"
	"fmt"
)

// Reason classifies why a network failed validation.
type Reason string

const (
	// MissingField is returned when a required key is absent.
	MissingField Reason = "MissingField"
	// ParseError is returned when a value is not a valid IPv4 address or network.
	ParseError Reason = "ParseError"
	// ContainmentError is returned when a gateway lies outside its network.
	ContainmentError Reason = "ContainmentError"
	// ConflictError is returned when a network overlaps an already accepted one.
	ConflictError Reason = "ConflictError"
)

// ValidationError describes why a single network was rejected.
type ValidationError struct {
	Reason  Reason
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s: %s", e.Reason, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s %q: %s", e.Reason, e.Field, e.Value, e.Message)
}

// IsReason reports whether err is a [ValidationError] with the given reason.
func IsReason(err error, reason Reason) bool {
	var verr *ValidationError
	return errors.As(err, &verr) && verr.Reason == reason
}

// NameCollisionError is reported when more than one relation advertises the same network name.
// The declarations of all those relations are skipped.
type NameCollisionError struct {
	Name  string
	Count int
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("network name %q is used by %d relations, please choose a unique network name", e.Name, e.Count)
}

// ErrNoRelation is returned when a network is requested before any relation exists.
var ErrNoRelation = errors.New("no ip-router relation exists yet")

func missing(field string) error {
	return &ValidationError{Reason: MissingField, Field: field, Message: "required key not found"}
}

// ReasonOf returns a short classification of a rejection error.
func ReasonOf(err error) string {
	var (
		verr      *ValidationError
		collision *NameCollisionError
	)
	switch {
	case errors.As(err, &verr):
		return string(verr.Reason)
	case errors.As(err, &collision):
		return "NameCollision"
	default:
		return "Unknown"
	}
}
