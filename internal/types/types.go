package types

import "github.com/DoyleJ11/lottery-backend/internal/room"

// Client -> Server
//
//	SetCandidates: text (raw textarea contents, one name per line)
//	StartDraw:     {}
//	Reset:         {}
//	Clear:         {}
//
// Server -> Client
//
//	StateSnapshot: version, state { status, input, count, pick, winner, tick, session }
//	Error:         error
type ClientMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type ServerMessage struct {
	Type    string     `json:"type"` // "StateSnapshot" | "Error"
	Version int        `json:"version,omitempty"`
	State   *room.View `json:"state,omitempty"`
	Error   string     `json:"error,omitempty"`
}

const (
	MsgSetCandidates = "SetCandidates"
	MsgStartDraw     = "StartDraw"
	MsgReset         = "Reset"
	MsgClear         = "Clear"

	MsgStateSnapshot = "StateSnapshot"
	MsgError         = "Error"
)
