package agentws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	ws "nhooyr.io/websocket"
)

// Agent is a stand-in for a real transport agent. It acknowledges every
// command after Delay, failing joins when FailJoins is set.
type Agent struct {
	URL       string // ws://host/ws/agent
	ClientID  string
	Token     string
	Delay     time.Duration
	FailJoins bool
}

// Run dials the server and answers commands until ctx ends or the
// connection drops.
func (a *Agent) Run(ctx context.Context) error {
	c, _, err := ws.Dial(ctx, a.URL+"?client_id="+a.ClientID, &ws.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + a.Token}},
	})
	if err != nil {
		return err
	}
	defer c.Close(ws.StatusNormalClosure, "agent exit")

	if err := a.write(ctx, c, Message{Type: TypeHello, TsMs: nowMs(), ClientID: a.ClientID}); err != nil {
		return err
	}
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var cmd Message
		if err := json.Unmarshal(data, &cmd); err != nil {
			log.Warn().Err(err).Msg("agent: bad command")
			continue
		}
		reply := Message{TsMs: nowMs(), ClientID: a.ClientID, Channel: cmd.Channel, CommandID: cmd.CommandID}
		switch cmd.Type {
		case TypeJoin:
			reply.Type = TypeJoined
			if a.FailJoins {
				reply.Type = TypeJoinFailed
				reply.Error = "simulated join failure"
			}
		case TypeLeave:
			reply.Type = TypeLeft
		default:
			continue
		}
		log.Debug().Str("cmd", cmd.Type).Str("channel", cmd.Channel).Str("reply", reply.Type).Msg("agent command")
		if a.Delay > 0 {
			select {
			case <-time.After(a.Delay):
			case <-ctx.Done():
				return nil
			}
		}
		if err := a.write(ctx, c, reply); err != nil {
			return err
		}
	}
}

func (a *Agent) write(ctx context.Context, c *ws.Conn, m Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.Write(ctx, ws.MessageText, b)
}
