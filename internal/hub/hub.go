package hub

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/lottery-backend/internal/engine"
	"github.com/DoyleJ11/lottery-backend/internal/room"
)

var ErrHubStopped = errors.New("hub stopped")

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Code  string
	State engine.State
	Reply chan *room.Room
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

type EnsureRoom struct {
	Code  string
	State engine.State // only used if creation happens
	Reply chan *room.Room
}

// RemoveRoom shuts the room down and forgets its code.
type RemoveRoom struct {
	Code  string
	Reply chan bool // optional; true if the code existed
}

type CountRooms struct {
	Reply chan int
}

type ShutdownHub struct{}

type Hub struct {
	inbox    chan HubMsg
	rooms    map[string]*room.Room
	roomOpts []room.Option
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (EnsureRoom) isHubMsg()  {}
func (RemoveRoom) isHubMsg()  {}
func (CountRooms) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// NewHub starts the registry. opts are passed to every room it creates.
func NewHub(parent context.Context, log *zap.Logger, opts ...room.Option) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		rooms:    make(map[string]*room.Room),
		roomOpts: append([]room.Option{room.WithLogger(log)}, opts...),
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub loop has exited.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			// Rooms share our ctx and stop on their own.
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.ensure(msg.Code, msg.State)

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // May be nil

			case EnsureRoom:
				msg.Reply <- h.ensure(msg.Code, msg.State)

			case RemoveRoom:
				rm, ok := h.rooms[msg.Code]
				if ok {
					rm.Send(room.Shutdown{})
					delete(h.rooms, msg.Code)
					h.log.Info("room removed", zap.String("code", msg.Code))
				}
				if msg.Reply != nil {
					msg.Reply <- ok
				}

			case CountRooms:
				msg.Reply <- len(h.rooms)

			case ShutdownHub:
				for _, rm := range h.rooms {
					rm.Send(room.Shutdown{})
				}
				clear(h.rooms)
				h.cancel()
			}
		}
	}
}

func (h *Hub) ensure(code string, state engine.State) *room.Room {
	if rm := h.rooms[code]; rm != nil {
		return rm
	}
	rm := room.NewRoom(h.ctx, state, h.roomOpts...)
	h.rooms[code] = rm
	h.log.Info("room created", zap.String("code", code))
	return rm
}

// Lookup is a blocking GetRoom. It returns nil if the code is unknown or
// the hub has stopped.
func (h *Hub) Lookup(code string) *room.Room {
	reply := make(chan *room.Room, 1)
	if !h.send(GetRoom{Code: code, Reply: reply}) {
		return nil
	}
	select {
	case rm := <-reply:
		return rm
	case <-h.done:
		return nil
	}
}

// Ensure is a blocking EnsureRoom.
func (h *Hub) Ensure(code string, state engine.State) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	if !h.send(EnsureRoom{Code: code, State: state, Reply: reply}) {
		return nil, ErrHubStopped
	}
	select {
	case rm := <-reply:
		return rm, nil
	case <-h.done:
		return nil, ErrHubStopped
	}
}

// Remove is a blocking RemoveRoom; the bool reports whether the code existed.
func (h *Hub) Remove(code string) (bool, error) {
	reply := make(chan bool, 1)
	if !h.send(RemoveRoom{Code: code, Reply: reply}) {
		return false, ErrHubStopped
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-h.done:
		return false, ErrHubStopped
	}
}

func (h *Hub) send(m HubMsg) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.inbox <- m:
		return true
	case <-h.done:
		return false
	}
}
