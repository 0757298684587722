package automation

import "errors"

// retryableError marks a run failure the scheduler should retry later:
// network trouble, identity-fetch or page-fetch errors. Everything
// else is terminal for the current run.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable wraps err so the scheduler retries the run.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether the scheduler should retry a run that
// failed with err.
func IsRetryable(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}
