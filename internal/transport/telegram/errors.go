package telegram

import (
	"errors"

	tele "gopkg.in/telebot.v4"

	"postbot/internal/transport"
)

// classify maps Bot API failures onto the retryability contract: flood
// control (429, with or without a retry_after hint) and server-side errors
// stay retryable, other client errors (bad request, bot blocked, missing
// rights) are permanent.
//
// telebot returns FloodError by value, so it is matched by value here.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return err
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 {
			// Rate limit without a FloodError wrapper.
			return err
		}
		if apiErr.Code >= 400 && apiErr.Code < 500 {
			return transport.Permanent(err)
		}
	}
	return err
}
