package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Kind groups error codes by how callers should react to them.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindStateConflict Kind = "state_conflict"
	KindAccessDenied  Kind = "access_denied"
	KindProcessor     Kind = "processor"
)

// Error is returned by every core operation. Code is stable and machine
// readable; Message is meant for humans.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return e.Code + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so errors.Is(err, ErrExpired) works for any message or field.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// withMessage returns a copy of the sentinel with a more specific message.
func (e *Error) withMessage(format string, args ...interface{}) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

var (
	ErrValidation          = &Error{Kind: KindValidation, Code: "VALIDATION_FAILED", Message: "invalid input"}
	ErrNotFound            = &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: "not found"}
	ErrExpired             = &Error{Kind: KindStateConflict, Code: "LINK_EXPIRED", Message: "payment link has expired"}
	ErrAlreadyUsed         = &Error{Kind: KindStateConflict, Code: "LINK_ALREADY_USED", Message: "payment link has already been used"}
	ErrLinkDisabled        = &Error{Kind: KindStateConflict, Code: "LINK_DISABLED", Message: "payment link has been disabled"}
	ErrLinkNotActive       = &Error{Kind: KindStateConflict, Code: "LINK_NOT_ACTIVE", Message: "payment link is not active"}
	ErrLinkHasPayment      = &Error{Kind: KindStateConflict, Code: "LINK_HAS_PAYMENT", Message: "payment link already has a completed transaction"}
	ErrAlreadyAcknowledged = &Error{Kind: KindStateConflict, Code: "ALREADY_ACKNOWLEDGED", Message: "transaction already acknowledged"}
	ErrNotCompleted        = &Error{Kind: KindStateConflict, Code: "TRANSACTION_NOT_COMPLETED", Message: "only completed transactions can be acknowledged"}
	ErrAccessDenied        = &Error{Kind: KindAccessDenied, Code: "ACCESS_DENIED", Message: "access denied"}
	ErrProcessor           = &Error{Kind: KindProcessor, Code: "PROCESSOR_ERROR", Message: "payment processor error"}
)

func validationError(field, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    ErrValidation.Code,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf returns the Kind of a core error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// isDuplicate reports a unique-constraint violation. TranslateError covers the
// supported dialects; the string match catches drivers that slip through.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
