package soa

import "errors"

var (
	ErrUnknownHandle    = errors.New("soa: unknown handle")
	ErrInvalidCount     = errors.New("soa: row count out of range")
	ErrHandlesExhausted = errors.New("soa: handles exhausted")
)
