package errcode

import (
	"errors"

	"loadcell-go/drivers/hx711"
)

// Code is a stable, caller-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	InvalidGain   Code = "invalid_gain"
	ZeroReference Code = "zero_reference"
	ZeroScale     Code = "zero_scale"
	DeviceClosed  Code = "device_closed"
	NotReady      Code = "not_ready"
	InvalidParams Code = "invalid_params"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// MapDriverErr maps the load-cell drivers' sentinel errors to a Code.
func MapDriverErr(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, hx711.ErrInvalidGain):
		return InvalidGain
	case errors.Is(err, hx711.ErrZeroReference):
		return ZeroReference
	case errors.Is(err, hx711.ErrZeroScale):
		return ZeroScale
	case errors.Is(err, hx711.ErrClosed):
		return DeviceClosed
	default:
		return Error
	}
}
