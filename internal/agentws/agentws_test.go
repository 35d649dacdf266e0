package agentws_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joinlink/internal/agentws"
	"joinlink/internal/auth"
	"joinlink/internal/channel"
	"joinlink/internal/config"
	"joinlink/internal/gate"
	"joinlink/internal/session"
	"joinlink/internal/store"
)

type harness struct {
	srv   *httptest.Server
	reg   *agentws.Registry
	st    *store.Store
	sess  *session.Context
	token string
	wsURL string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	var cfg config.Config
	cfg.Agent.TokenSecret = "s3cret"
	cfg.Agent.TokenSkewSecs = 60

	st := store.New()
	require.NoError(t, st.CreateClient(&store.Client{ID: "c1", Phase: "idle"}))
	reg := agentws.NewRegistry()
	sessions := session.NewRegistry()
	sc := session.New("c1", session.Deps{
		Transport: agentws.NewTransport(reg),
		Generator: channel.NewSeededGenerator(8, 3),
		Store:     st,
	})
	sessions.Put(sc)

	s := agentws.NewServer(cfg, st, reg, sessions.Events)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/agent", s.HandleAgentWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tok, err := auth.IssueAgentToken(cfg.Agent.TokenSecret, "c1", time.Now().Add(time.Hour).Unix())
	require.NoError(t, err)

	return &harness{
		srv:   srv,
		reg:   reg,
		st:    st,
		sess:  sc,
		token: tok,
		wsURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/agent",
	}
}

func (h *harness) runAgent(t *testing.T, failJoins bool) {
	t.Helper()
	h.startAgent(t, &agentws.Agent{FailJoins: failJoins})
	require.Eventually(t, func() bool { return h.reg.Connected("c1") }, 2*time.Second, 10*time.Millisecond)
}

// startAgent runs a on the harness and returns a func that stops it and
// waits for Run to return.
func (h *harness) startAgent(t *testing.T, a *agentws.Agent) (stop func()) {
	t.Helper()
	a.URL, a.ClientID, a.Token = h.wsURL, "c1", h.token
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.Run(ctx)
	}()
	stop = func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)
	return stop
}

func (h *harness) eventTypes() []string {
	var out []string
	for _, e := range h.st.ListEvents("c1") {
		out = append(out, e.Type)
	}
	return out
}

func TestAgentDrivesGate(t *testing.T) {
	h := newHarness(t)
	h.runAgent(t, false)

	_, err := h.sess.CreateSession(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.sess.State().IsActive() }, 2*time.Second, 10*time.Millisecond)

	h.sess.Exit(context.Background())
	require.Eventually(t, func() bool { return h.sess.State().Phase == gate.Idle }, 2*time.Second, 10*time.Millisecond)

	assert.True(t, h.st.GetClient("c1").AgentSeen)
}

func TestAgentJoinFailure(t *testing.T) {
	h := newHarness(t)
	h.runAgent(t, true)

	_, err := h.sess.CreateSession(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		s := h.sess.State()
		return s.Phase == gate.Idle && s.Err != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, h.sess.State().Err.Error(), "simulated join failure")
}

func TestJoinWithoutAgentFailsImmediately(t *testing.T) {
	h := newHarness(t)

	_, err := h.sess.CreateSession(context.Background())
	require.NoError(t, err)
	s := h.sess.State()
	assert.Equal(t, gate.Idle, s.Phase)
	assert.True(t, errors.Is(s.Err, agentws.ErrNoAgent))
}

func TestRejectsBadRequests(t *testing.T) {
	h := newHarness(t)
	httpURL := h.srv.URL + "/ws/agent"

	resp, err := http.Get(httpURL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(httpURL + "?client_id=nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(httpURL + "?client_id=c1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, httpURL+"?client_id=c1", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAgentDropWhileLeavingReleases(t *testing.T) {
	h := newHarness(t)
	h.runAgent(t, false)

	_, err := h.sess.CreateSession(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.sess.State().IsActive() }, 2*time.Second, 10*time.Millisecond)

	// a slow agent takes over and never answers the leave
	stop := h.startAgent(t, &agentws.Agent{Delay: time.Minute})
	require.Eventually(t, func() bool {
		return h.reg.Connected("c1") && contains(h.eventTypes(), "agent_replaced")
	}, 2*time.Second, 10*time.Millisecond)

	h.sess.Exit(context.Background())
	require.Equal(t, gate.Leaving, h.sess.State().Phase)
	stop()

	require.Eventually(t, func() bool { return h.sess.State().Phase == gate.Idle }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, h.st.GetClient("c1").AgentSeen)

	// the gate accepts a new session afterwards
	d, err := h.sess.CreateSession(context.Background())
	require.NoError(t, err)
	assert.False(t, d.Ignored)
}

func TestAgentDropWhileJoiningFails(t *testing.T) {
	h := newHarness(t)
	stop := h.startAgent(t, &agentws.Agent{Delay: time.Minute})
	require.Eventually(t, func() bool { return h.reg.Connected("c1") }, 2*time.Second, 10*time.Millisecond)

	_, err := h.sess.CreateSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, gate.Joining, h.sess.State().Phase)
	stop()

	require.Eventually(t, func() bool { return h.sess.State().Phase == gate.Idle }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, h.sess.State().Err, agentws.ErrNoAgent)
}

func TestReplacedAgentStaysConnected(t *testing.T) {
	h := newHarness(t)
	h.runAgent(t, false)
	h.runAgent(t, false)

	require.Eventually(t, func() bool { return contains(h.eventTypes(), "agent_replaced") }, 2*time.Second, 10*time.Millisecond)
	// the first agent's disconnect must not clear the replacement
	require.Eventually(t, func() bool { return contains(h.eventTypes(), "agent_disconnected") }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, h.reg.Connected("c1"))
	assert.True(t, h.st.GetClient("c1").AgentSeen)

	_, err := h.sess.CreateSession(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.sess.State().IsActive() }, 2*time.Second, 10*time.Millisecond)
}

func TestCloseAllDisconnectsAgents(t *testing.T) {
	h := newHarness(t)
	h.runAgent(t, false)

	h.reg.CloseAll("shutdown")
	assert.False(t, h.reg.Connected("c1"))
	require.Eventually(t, func() bool { return contains(h.eventTypes(), "agent_disconnected") }, 2*time.Second, 10*time.Millisecond)
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
