package transport

import (
	"context"
	"errors"
	"fmt"
)

// errPermanent is the sentinel adapters wrap around failures that no retry
// can fix: destination gone, bot lost posting rights, content rejected.
var errPermanent = errors.New("permanent delivery failure")

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", errPermanent, err)
}

// IsPermanent reports whether err was marked by Permanent.
func IsPermanent(err error) bool { return errors.Is(err, errPermanent) }

// IsTimeout reports whether err is an ambiguous timeout: the send may or may
// not have reached the platform.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
