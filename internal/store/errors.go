package store

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrUnknownCategory   = errors.New("unknown child category")
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidField      = errors.New("invalid field")
)
