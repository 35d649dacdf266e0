// Package loopback is an in-process Transport that reports every join and
// leave as successful from a separate goroutine.
package loopback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"joinlink/internal/channel"
	"joinlink/internal/transport"
)

// Resolver returns the Events sink for a client, or nil when unknown.
type Resolver func(clientID string) transport.Events

type Transport struct {
	resolve Resolver
	delay   time.Duration

	mu     sync.Mutex
	fail   map[channel.ID]error
	wg     sync.WaitGroup
	closed bool
}

func New(resolve Resolver, delay time.Duration) *Transport {
	return &Transport{resolve: resolve, delay: delay, fail: make(map[channel.ID]error)}
}

// FailNext makes the next join of id report err instead of confirming.
func (t *Transport) FailNext(id channel.ID, err error) {
	t.mu.Lock()
	t.fail[id] = err
	t.mu.Unlock()
}

func (t *Transport) Join(ctx context.Context, clientID string, id channel.ID, role transport.Role) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("loopback transport closed")
	}
	failErr, fail := t.fail[id]
	delete(t.fail, id)
	t.wg.Add(1)
	t.mu.Unlock()

	log.Debug().Str("client_id", clientID).Str("channel", id.String()).Str("role", string(role)).Msg("loopback join")
	go func() {
		defer t.wg.Done()
		t.sleep()
		ev := t.resolve(clientID)
		if ev == nil {
			return
		}
		if fail {
			ev.Failed(id, failErr)
			return
		}
		ev.Confirmed(id)
	}()
	return nil
}

func (t *Transport) Leave(ctx context.Context, clientID string, id channel.ID) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("loopback transport closed")
	}
	t.wg.Add(1)
	t.mu.Unlock()

	log.Debug().Str("client_id", clientID).Str("channel", id.String()).Msg("loopback leave")
	go func() {
		defer t.wg.Done()
		t.sleep()
		if ev := t.resolve(clientID); ev != nil {
			ev.Released(id)
		}
	}()
	return nil
}

// Close rejects new requests and waits for pending reports.
func (t *Transport) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Transport) sleep() {
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
}
