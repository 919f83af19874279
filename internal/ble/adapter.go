// Package ble manages discovery and the single wireless link to the board.
// The concrete radio sits behind the Adapter interface; Central layers the
// lifecycle state machine and observer plumbing on top.
package ble

import "context"

// Peripheral is one device seen during a scan. The list is ephemeral and
// rebuilt wholesale on every scan.
type Peripheral struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	RSSI int16  `json:"rssi"`
}

// Link is an established connection's write/notify endpoint.
type Link interface {
	// Write sends one payload to the peer.
	Write(p []byte) error
	// Unsubscribe cancels the notification subscription.
	Unsubscribe() error
	// Close requests peer disconnection and releases the link.
	Close() error
}

// Adapter abstracts the radio stack. Implementations must honor context
// cancellation on both operations.
type Adapter interface {
	// Scan streams discovered peripherals to found until ctx is done.
	// Returning ctx.Err() at window end is not a failure.
	Scan(ctx context.Context, found func(Peripheral)) error

	// Connect dials the peripheral, locates serviceUUID/charUUID, and
	// subscribes notify to characteristic value changes. Failures use the
	// package sentinels where a cause is known.
	Connect(ctx context.Context, id, serviceUUID, charUUID string, notify func([]byte)) (Link, error)
}
