// Package agentws connects remote transport agents over websocket. The
// server sends join/leave commands; agents report joined, join_failed and
// left, which drive the client's activation gate.
package agentws

import (
	"errors"
	"time"
)

var ErrNoAgent = errors.New("no agent connected")

const (
	// server -> agent
	TypeJoin  = "join"
	TypeLeave = "leave"

	// agent -> server
	TypeHello      = "hello"
	TypeJoined     = "joined"
	TypeJoinFailed = "join_failed"
	TypeLeft       = "left"
)

type Message struct {
	Type      string `json:"type"`
	TsMs      int64  `json:"ts_ms"`
	ClientID  string `json:"client_id"`
	Channel   string `json:"channel,omitempty"`
	CommandID string `json:"command_id,omitempty"`
	Role      string `json:"role,omitempty"`
	Error     string `json:"error,omitempty"`
}

func nowMs() int64 { return time.Now().UnixMilli() }
