package ports

import "context"

// Dialer opens sessions to the heat pump.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Conn is one established session. Receive blocks until a frame arrives, the
// context ends, or the session fails. Close must be safe to call more than
// once and concurrently with Receive.
type Conn interface {
	Send(command string) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}
