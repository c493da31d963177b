package service

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"skillfund/internal/repository"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Error pairs a sentinel kind with the message shown to the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func notFound(msg string) error  { return &Error{Kind: ErrNotFound, Message: msg} }
func forbidden(msg string) error { return &Error{Kind: ErrForbidden, Message: msg} }
func conflict(msg string) error  { return &Error{Kind: ErrConflict, Message: msg} }

// ValidationError 字段校验失败，key 为 JSON 字段名
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type validator struct {
	fields map[string]string
}

func (v *validator) check(ok bool, field, msg string) {
	if ok {
		return
	}
	if v.fields == nil {
		v.fields = make(map[string]string)
	}
	if _, exists := v.fields[field]; !exists {
		v.fields[field] = msg
	}
}

// 金额列都是 NUMERIC(12,2)
const maxMoney = 9999999999.99

// money rejects amounts the money columns cannot hold as given: above
// maxMoney, or with fractions of a cent. label names the field in messages.
func (v *validator) money(field, label string, amount *float64) {
	if amount == nil {
		return
	}
	v.check(*amount <= maxMoney, field, label+" must not exceed "+FormatAmount(maxMoney))
	cents := *amount * 100
	v.check(math.Abs(cents-math.Round(cents)) < 1e-6, field, label+" must not have more than 2 decimal places")
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

// translate maps repository errors onto service errors. Unknown errors are
// returned unchanged.
func translate(err error, notFoundMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound(notFoundMsg)
	case errors.Is(err, repository.ErrNotOwner):
		return forbidden("you do not own this resource")
	default:
		return err
	}
}
