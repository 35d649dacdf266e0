package agentws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"joinlink/internal/channel"
	"joinlink/internal/transport"
)

const sendTimeout = 5 * time.Second

// Transport forwards join/leave to the agent connected for each client.
type Transport struct {
	reg *Registry
}

var _ transport.Transport = (*Transport)(nil)

func NewTransport(reg *Registry) *Transport { return &Transport{reg: reg} }

func (t *Transport) Join(ctx context.Context, clientID string, id channel.ID, role transport.Role) error {
	return t.send(ctx, Message{
		Type:      TypeJoin,
		TsMs:      nowMs(),
		ClientID:  clientID,
		Channel:   id.String(),
		CommandID: uuid.NewString(),
		Role:      string(role),
	})
}

func (t *Transport) Leave(ctx context.Context, clientID string, id channel.ID) error {
	return t.send(ctx, Message{
		Type:      TypeLeave,
		TsMs:      nowMs(),
		ClientID:  clientID,
		Channel:   id.String(),
		CommandID: uuid.NewString(),
	})
}

func (t *Transport) send(ctx context.Context, m Message) error {
	// request contexts end with the HTTP call; the command must not
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()
	return t.reg.SendJSON(ctx, m.ClientID, m)
}
