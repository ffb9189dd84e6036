package ratelimit

import "errors"

// ErrBudgetExhausted means the remaining quota is spent and the wait until
// reset exceeds the governor's ceiling, so the call fails fast instead of
// blocking the caller for minutes.
var ErrBudgetExhausted = errors.New("rate limit budget exhausted")
