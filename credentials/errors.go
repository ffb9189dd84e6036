package credentials

import "errors"

var (
	// ErrConnectionNotFound means the user has no active Xero connection, or
	// the requested tenant does not match one.
	ErrConnectionNotFound = errors.New("no active xero connection")

	// ErrReauthRequired means no valid credential is recoverable: the grant
	// was revoked or the refresh race left nothing usable. The user must go
	// through the connect flow again.
	ErrReauthRequired = errors.New("xero connection requires re-authorisation")
)
