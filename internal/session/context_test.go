package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joinlink/internal/channel"
	"joinlink/internal/gate"
	"joinlink/internal/link"
	"joinlink/internal/store"
	"joinlink/internal/transport"
	"joinlink/internal/transport/loopback"
	"joinlink/internal/transport/mock"
)

type fixedGen struct{ id channel.ID }

func (g fixedGen) New() (channel.ID, error) { return g.id, nil }

type failingGen struct{}

func (failingGen) New() (channel.ID, error) { return "", errors.New("no entropy") }

func newTestContext(t *testing.T, tr transport.Transport, gen channel.Generator) (*Context, *store.Store) {
	t.Helper()
	codec, err := link.NewCodec("https://example.com")
	require.NoError(t, err)
	st := store.New()
	require.NoError(t, st.CreateClient(&store.Client{ID: "c1", Phase: "idle"}))
	return New("c1", Deps{Transport: tr, Generator: gen, Codec: codec, Store: st}), st
}

func TestCreateSessionJoinsAndConfirms(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)
	c, st := newTestContext(t, tr, fixedGen{id: "abc123XY"})

	tr.EXPECT().Join(gomock.Any(), "c1", channel.ID("abc123XY"), transport.Broadcaster).Return(nil)

	d, err := c.CreateSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gate.Join, d.Action)
	assert.Equal(t, gate.Joining, c.State().Phase)

	c.Confirmed("abc123XY")
	assert.True(t, c.State().IsActive())

	rec := st.GetClient("c1")
	assert.Equal(t, "active", rec.Phase)
	assert.Equal(t, "https://example.com/join?channel=abc123XY", rec.Link)

	share, err := c.ShareLink()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/join?channel=abc123XY", share)
}

func TestOpenLink(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)
	c, _ := newTestContext(t, tr, fixedGen{id: "unused"})

	d, found := c.OpenLink(context.Background(), "https://example.com/join?foo=bar")
	assert.False(t, found)
	assert.True(t, d.Ignored)
	assert.Equal(t, gate.Idle, c.State().Phase)

	tr.EXPECT().Join(gomock.Any(), "c1", channel.ID("fromLink1"), transport.Broadcaster).Return(nil)
	d, found = c.OpenLink(context.Background(), "https://example.com/join?channel=fromLink1")
	assert.True(t, found)
	assert.Equal(t, gate.Join, d.Action)

	// second link while joining keeps the first session
	d, found = c.OpenLink(context.Background(), "https://example.com/join?channel=other")
	assert.True(t, found)
	assert.True(t, d.Ignored)
	assert.Equal(t, channel.ID("fromLink1"), c.State().Channel)
}

func TestOpenLinkInvalidChannelIgnored(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)
	c, _ := newTestContext(t, tr, fixedGen{})

	d, found := c.OpenLink(context.Background(), "https://example.com/join?channel=a+b")
	assert.True(t, found)
	assert.True(t, d.Ignored)
	assert.Equal(t, "invalid_channel", d.Reason)
}

func TestExitWhileJoiningSuppressesLateConfirm(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)
	c, st := newTestContext(t, tr, fixedGen{id: "abc"})

	gomock.InOrder(
		tr.EXPECT().Join(gomock.Any(), "c1", channel.ID("abc"), transport.Broadcaster).Return(nil),
		tr.EXPECT().Leave(gomock.Any(), "c1", channel.ID("abc")).Return(nil),
	)

	_, err := c.CreateSession(context.Background())
	require.NoError(t, err)
	d := c.Exit(context.Background())
	assert.Equal(t, gate.Leave, d.Action)

	c.Confirmed("abc")
	assert.Equal(t, gate.Leaving, c.State().Phase)

	c.Released("abc")
	assert.Equal(t, gate.Idle, c.State().Phase)

	var ignored int
	for _, e := range st.ListEvents("c1") {
		if e.Type == "ignored" {
			ignored++
		}
	}
	assert.Equal(t, 1, ignored)
}

func TestJoinSendErrorFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)
	c, st := newTestContext(t, tr, fixedGen{id: "abc"})

	tr.EXPECT().Join(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("offline"))

	_, err := c.CreateSession(context.Background())
	require.NoError(t, err)
	s := c.State()
	assert.Equal(t, gate.Idle, s.Phase)
	require.Error(t, s.Err)
	assert.Contains(t, st.GetClient("c1").LastError, "offline")
}

func TestLeaveSendErrorReleasesLocally(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)
	c, _ := newTestContext(t, tr, fixedGen{id: "abc"})

	tr.EXPECT().Join(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	tr.EXPECT().Leave(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("offline"))

	_, _ = c.CreateSession(context.Background())
	c.Confirmed("abc")
	c.Exit(context.Background())
	assert.Equal(t, gate.Idle, c.State().Phase)
}

func TestTransportLost(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)
	c, _ := newTestContext(t, tr, fixedGen{id: "abc"})
	lost := errors.New("agent gone")

	// idle: nothing pending
	c.TransportLost(lost)
	assert.Equal(t, gate.Idle, c.State().Phase)
	assert.NoError(t, c.State().Err)

	tr.EXPECT().Join(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	tr.EXPECT().Leave(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	_, _ = c.CreateSession(context.Background())
	c.TransportLost(lost)
	assert.Equal(t, gate.Idle, c.State().Phase)
	assert.ErrorIs(t, c.State().Err, lost)

	_, _ = c.CreateSession(context.Background())
	c.Confirmed("abc")
	c.TransportLost(lost)
	assert.True(t, c.State().IsActive(), "active session survives")

	c.Exit(context.Background())
	require.Equal(t, gate.Leaving, c.State().Phase)
	c.TransportLost(lost)
	assert.Equal(t, gate.Idle, c.State().Phase)
	assert.NoError(t, c.State().Err)
}

func TestGeneratorError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c, _ := newTestContext(t, mock.NewMockTransport(ctrl), failingGen{})
	_, err := c.CreateSession(context.Background())
	assert.Error(t, err)
	assert.Equal(t, gate.Idle, c.State().Phase)
}

func TestShareLinkErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)
	c, _ := newTestContext(t, tr, fixedGen{id: "abc"})
	_, err := c.ShareLink()
	assert.ErrorIs(t, err, ErrNoChannel)

	noCodec := New("c2", Deps{Transport: tr, Generator: fixedGen{id: "abc"}})
	tr.EXPECT().Join(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	_, _ = noCodec.CreateSession(context.Background())
	_, err = noCodec.ShareLink()
	assert.ErrorIs(t, err, link.ErrConfiguration)
}

func TestLoopbackRoundTrip(t *testing.T) {
	reg := NewRegistry()
	lb := loopback.New(reg.Events, time.Millisecond)
	c, _ := newTestContext(t, lb, channel.NewGenerator(8))
	reg.Put(c)

	_, err := c.CreateSession(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.State().IsActive() }, time.Second, 5*time.Millisecond)

	c.Exit(context.Background())
	require.Eventually(t, func() bool { return c.State().Phase == gate.Idle }, time.Second, 5*time.Millisecond)
	lb.Close()
}
