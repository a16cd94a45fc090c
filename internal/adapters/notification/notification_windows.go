//go:build windows

package notification

import (
	"context"
)

// Send only logs on Windows; toast notifications need a registered AppUserModelID.
func (a *Adapter) Send(ctx context.Context, title, message, sound string) error {
	if ctx.Err() != nil {
		return nil
	}
	title, message = prepare(title, message)
	a.logger.Debug("desktop notifications are not supported on Windows", "title", title, "message", message)
	return nil
}
