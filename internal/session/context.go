// Package session owns one caller's activation state. A Context is created
// explicitly per client and handed to whatever needs it; there is no
// process-wide session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"joinlink/internal/channel"
	"joinlink/internal/gate"
	"joinlink/internal/link"
	"joinlink/internal/store"
	"joinlink/internal/transport"
)

var ErrNoChannel = errors.New("no channel to share")

// Deps are the collaborators a Context drives. Codec may be nil when the
// base domain is misconfigured; only ShareLink is affected.
type Deps struct {
	Transport transport.Transport
	Generator channel.Generator
	Codec     *link.Codec
	Store     *store.Store
	Role      transport.Role
}

type Context struct {
	id   string
	deps Deps
	log  zerolog.Logger

	mu    sync.Mutex
	state gate.State
}

var _ transport.Events = (*Context)(nil)

func New(clientID string, d Deps) *Context {
	if d.Role == "" {
		d.Role = transport.Broadcaster
	}
	return &Context{
		id:    clientID,
		deps:  d,
		log:   log.With().Str("client_id", clientID).Logger(),
		state: gate.Inactive(),
	}
}

func (c *Context) ID() string { return c.id }

func (c *Context) State() gate.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CreateSession generates a fresh channel id and starts joining it.
func (c *Context) CreateSession(ctx context.Context) (gate.Decision, error) {
	id, err := c.deps.Generator.New()
	if err != nil {
		return gate.Decision{}, fmt.Errorf("create session: %w", err)
	}
	d := c.apply(ctx, gate.Event{Kind: gate.CreateSession, Channel: id})
	if !d.Ignored {
		metricChannelsCreated.Inc()
	}
	return d, nil
}

// OpenLink decodes rawURL and, when it names a channel, asks the gate to
// join it. found is false when the link carried no channel.
func (c *Context) OpenLink(ctx context.Context, rawURL string) (d gate.Decision, found bool) {
	id, ok := link.Decode(rawURL)
	if !ok {
		c.record("link_without_channel", map[string]any{"url": rawURL})
		return gate.Decision{Ignored: true, Reason: "no_channel"}, false
	}
	return c.apply(ctx, gate.Event{Kind: gate.ReceiveLink, Channel: id}), true
}

// Exit leaves the current session, including one still joining.
func (c *Context) Exit(ctx context.Context) gate.Decision {
	return c.apply(ctx, gate.Event{Kind: gate.Exit})
}

func (c *Context) Confirmed(id channel.ID) {
	c.apply(context.Background(), gate.Event{Kind: gate.Confirmed, Channel: id})
}

func (c *Context) Failed(id channel.ID, err error) {
	if err == nil {
		err = errors.New("join failed")
	}
	c.apply(context.Background(), gate.Event{Kind: gate.Failed, Channel: id, Err: err})
}

func (c *Context) Released(id channel.ID) {
	c.apply(context.Background(), gate.Event{Kind: gate.Released, Channel: id})
}

// TransportLost settles a request the transport can no longer answer: a
// pending leave is released locally and a pending join fails with err.
func (c *Context) TransportLost(err error) {
	st := c.State()
	switch st.Phase {
	case gate.Leaving:
		c.Released(st.Channel)
	case gate.Joining:
		c.Failed(st.Channel, err)
	}
}

// ShareLink returns the share link for the current channel.
func (c *Context) ShareLink() (string, error) {
	st := c.State()
	if st.Channel == "" {
		return "", ErrNoChannel
	}
	if c.deps.Codec == nil {
		return "", fmt.Errorf("%w: base domain not configured", link.ErrConfiguration)
	}
	return c.deps.Codec.Encode(st.Channel)
}

func (c *Context) apply(ctx context.Context, e gate.Event) gate.Decision {
	c.mu.Lock()
	from := c.state
	to, d := gate.Step(from, e)
	c.state = to
	c.mu.Unlock()

	if d.Ignored {
		metricIgnored.WithLabelValues(string(e.Kind), d.Reason).Inc()
		c.log.Debug().Str("event", string(e.Kind)).Str("reason", d.Reason).Msg("event ignored")
		c.record("ignored", map[string]any{"event": string(e.Kind), "reason": d.Reason, "channel": e.Channel.String()})
		return d
	}

	metricTransitions.WithLabelValues(string(from.Phase), string(to.Phase)).Inc()
	payload := map[string]any{"event": string(e.Kind), "from": string(from.Phase), "to": string(to.Phase), "channel": d.Channel.String()}
	if d.Err != nil {
		metricJoinFailures.Inc()
		payload["error"] = d.Err.Error()
		c.log.Warn().Err(d.Err).Str("channel", d.Channel.String()).Msg("join failed")
	} else {
		c.log.Info().Str("from", string(from.Phase)).Str("to", string(to.Phase)).Str("channel", d.Channel.String()).Msg("transition")
	}
	c.record("transition", payload)
	c.sync(to)

	switch d.Action {
	case gate.Join:
		if err := c.deps.Transport.Join(ctx, c.id, d.Channel, c.deps.Role); err != nil {
			c.Failed(d.Channel, fmt.Errorf("send join: %w", err))
		}
	case gate.Leave:
		if err := c.deps.Transport.Leave(ctx, c.id, d.Channel); err != nil {
			// nothing will report back; release locally
			c.log.Error().Err(err).Msg("send leave")
			c.Released(d.Channel)
		}
	}
	return d
}

func (c *Context) record(typ string, payload map[string]any) {
	if c.deps.Store == nil {
		return
	}
	c.deps.Store.AppendEvent(c.id, typ, payload)
}

func (c *Context) sync(st gate.State) {
	if c.deps.Store == nil {
		return
	}
	var shareLink string
	if st.Channel != "" && c.deps.Codec != nil {
		shareLink, _ = c.deps.Codec.Encode(st.Channel)
	}
	_ = c.deps.Store.UpdateClient(c.id, func(rec *store.Client) {
		rec.Phase = string(st.Phase)
		rec.Channel = st.Channel.String()
		rec.Link = shareLink
		rec.LastError = ""
		if st.Err != nil {
			rec.LastError = st.Err.Error()
		}
	})
}
