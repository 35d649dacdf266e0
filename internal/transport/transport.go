// Package transport is the contract with the real-time communication
// subsystem that actually joins and leaves channels.
package transport

import (
	"context"

	"joinlink/internal/channel"
)

//go:generate mockgen -destination=mock/transport_mock.go -package=mock joinlink/internal/transport Transport,Events

type Role string

const (
	Broadcaster Role = "broadcaster"
	Audience    Role = "audience"
)

// ParseRole maps a config value to a Role, defaulting to Broadcaster.
func ParseRole(s string) Role {
	if Role(s) == Audience {
		return Audience
	}
	return Broadcaster
}

// Transport requests are fire-and-forget. Completion is reported later via
// Events. A returned error means the request could not be sent at all.
type Transport interface {
	Join(ctx context.Context, clientID string, id channel.ID, role Role) error
	Leave(ctx context.Context, clientID string, id channel.ID) error
}

// Events receives asynchronous completion reports for one client.
type Events interface {
	Confirmed(id channel.ID)
	Failed(id channel.ID, err error)
	Released(id channel.ID)
}
