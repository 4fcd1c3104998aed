// Package eventstream publishes capture decisions to an external stream.
package eventstream

import "context"

// Publisher publishes capture events to an event stream backend.
type Publisher interface {
	PublishCapture(ctx context.Context, event *CaptureDecidedEvent) error
	Close() error
}
