package engine

import (
	"errors"
	"time"

	"github.com/DoyleJ11/lottery-backend/internal/candidates"
)

var ErrStaleTick = errors.New("stale tick")
var ErrDrawInProgress = errors.New("draw in progress")
var ErrUnsupportedCommand = errors.New("unsupported command")

const (
	DefaultTicks    = 15
	DefaultInterval = 100 * time.Millisecond
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusDrawing Status = "drawing"
	StatusSettled Status = "settled"
)

// State is one room's draw state. Snapshot is the list captured at the
// start of the current session; it is replaced, never mutated.
type State struct {
	Status   Status
	Input    string
	Snapshot candidates.List
	Session  int
	Tick     int
	Pick     string
	Winner   string
	Rules    Rules
}

type Rules struct {
	Ticks    int
	Interval time.Duration
}

func (r Rules) TickCount() int {
	if r.Ticks <= 0 {
		return DefaultTicks
	}
	return r.Ticks
}

func (r Rules) TickInterval() time.Duration {
	if r.Interval <= 0 {
		return DefaultInterval
	}
	return r.Interval
}

type CommandType string

const (
	CmdSetInput  CommandType = "SetInput"
	CmdStartDraw CommandType = "StartDraw"
	CmdTick      CommandType = "Tick"
	CmdReset     CommandType = "Reset"
	CmdClear     CommandType = "Clear"
)

/*
	CmdSetInput  -> EvtInputChanged
	CmdStartDraw -> EvtDrawStarted            (nothing at all on an empty list)
	CmdTick      -> EvtPickShown              (ticks 1..N-1)
	             -> EvtPickShown -> EvtWinnerSettled   (tick N)
	CmdReset     -> EvtDrawReset
	CmdClear     -> EvtInputCleared
*/

type Command struct {
	Type    CommandType
	Text    string // CmdSetInput
	Session int    // CmdTick: the session the tick was scheduled for
}

type EventType string

const (
	EvtInputChanged  EventType = "InputChanged"
	EvtDrawStarted   EventType = "DrawStarted"
	EvtPickShown     EventType = "PickShown"
	EvtWinnerSettled EventType = "WinnerSettled"
	EvtDrawReset     EventType = "DrawReset"
	EvtInputCleared  EventType = "InputCleared"
)

type Event struct {
	Type    EventType
	Session int
	Tick    int
	Name    string
}

// Apply runs one command against s. rng may be nil, in which case the
// package default source is used. On error the returned state is s.
func Apply(s State, cmd Command, rng RandomSource) ([]Event, State, error) {
	if rng == nil {
		rng = DefaultRandom()
	}
	newState := s

	switch cmd.Type {
	case CmdSetInput:
		// Only the raw text changes; a running session keeps its snapshot.
		newState.Input = cmd.Text
		return []Event{{Type: EvtInputChanged, Session: s.Session}}, newState, nil

	case CmdStartDraw:
		names := candidates.Normalize(s.Input)
		if len(names) == 0 {
			// Guarded: nothing to draw from, nothing changes.
			return nil, s, nil
		}

		newState.Snapshot = names
		newState.Session = s.Session + 1
		newState.Tick = 0
		newState.Pick = ""
		newState.Winner = ""
		newState.Status = StatusDrawing
		return []Event{{Type: EvtDrawStarted, Session: newState.Session}}, newState, nil

	case CmdTick:
		if s.Status != StatusDrawing || cmd.Session != s.Session {
			return nil, s, ErrStaleTick
		}

		pick := drawOne(s.Snapshot, rng)
		newState.Tick = s.Tick + 1
		newState.Pick = pick
		events := []Event{
			{Type: EvtPickShown, Session: s.Session, Tick: newState.Tick, Name: pick},
		}

		if newState.Tick >= s.Rules.TickCount() {
			// The winner is its own draw, not the last pick shown.
			winner := drawOne(s.Snapshot, rng)
			newState.Winner = winner
			newState.Pick = winner
			newState.Status = StatusSettled
			events = append(events, Event{Type: EvtWinnerSettled, Session: s.Session, Tick: newState.Tick, Name: winner})
		}
		return events, newState, nil

	case CmdReset:
		if s.Status == StatusDrawing {
			return nil, s, ErrDrawInProgress
		}
		newState.Status = StatusIdle
		newState.Pick = ""
		newState.Winner = ""
		newState.Tick = 0
		return []Event{{Type: EvtDrawReset, Session: s.Session}}, newState, nil

	case CmdClear:
		newState.Status = StatusIdle
		newState.Input = ""
		newState.Snapshot = nil
		newState.Pick = ""
		newState.Winner = ""
		newState.Tick = 0
		return []Event{{Type: EvtInputCleared, Session: s.Session}}, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func drawOne(names candidates.List, rng RandomSource) string {
	return names[rng.IntN(len(names))]
}
