package connections

import "errors"

var (
	ErrNotFound        = errors.New("connection not found")
	ErrVersionConflict = errors.New("connection row version conflict")
	ErrAlreadyActive   = errors.New("an active connection already exists for this user and tenant")
)
