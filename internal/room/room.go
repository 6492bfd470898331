package room

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/lottery-backend/internal/candidates"
	"github.com/DoyleJ11/lottery-backend/internal/engine"
	"github.com/DoyleJ11/lottery-backend/internal/schedule"
)

type Msg interface{ isRoomMsg() }

type FromClient struct {
	Cmd engine.Command
}

func (FromClient) isRoomMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isRoomMsg() {}

type Leave struct{ ClientID string }

func (Leave) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type GetState struct {
	Reply chan Info
}

func (GetState) isRoomMsg() {}

// tickFired is posted by the draw timer. Session ties it to the draw that
// armed it so late fires from a superseded draw can be dropped.
type tickFired struct {
	Session int
	N       int
}

func (tickFired) isRoomMsg() {}

// View is the render state sent to clients.
type View struct {
	Status  engine.Status `json:"status"`
	Input   string        `json:"input"`
	Count   int           `json:"count"`
	Pick    string        `json:"pick,omitempty"`
	Winner  string        `json:"winner,omitempty"`
	Tick    int           `json:"tick"`
	Session int           `json:"session"`
}

type Snapshot struct {
	Version int
	View    View
}

type Info struct {
	Version    int
	NumClients int
	TimerArmed bool
	View       View
}

func ViewOf(s engine.State) View {
	return View{
		Status:  s.Status,
		Input:   s.Input,
		Count:   candidates.Count(s.Input),
		Pick:    s.Pick,
		Winner:  s.Winner,
		Tick:    s.Tick,
		Session: s.Session,
	}
}

type Option func(*Room)

func WithScheduler(s schedule.Scheduler) Option { return func(r *Room) { r.sched = s } }

func WithRandom(rng engine.RandomSource) Option { return func(r *Room) { r.rng = rng } }

func WithLogger(log *zap.Logger) Option { return func(r *Room) { r.log = log } }

type Room struct {
	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]chan Snapshot
	sched   schedule.Scheduler
	timer   schedule.Handle
	rng     engine.RandomSource
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewRoom(parent context.Context, initial engine.State, opts ...Option) *Room {
	ctx, cancel := context.WithCancel(parent)

	r := &Room{
		inbox:   make(chan Msg, 64), // Small buffer
		state:   initial,
		version: 0,
		clients: make(map[string]chan Snapshot),
		sched:   schedule.Real{},
		rng:     engine.DefaultRandom(),
		log:     zap.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	go r.loop()
	return r
}

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.join(msg)

			case Leave:
				// A client dropped or shut out earlier already had its outbox closed.
				if ch, ok := r.clients[msg.ClientID]; ok {
					close(ch)
					delete(r.clients, msg.ClientID)
				}

			case FromClient:
				r.handleCommand(msg.Cmd)

			case tickFired:
				r.handleTick(msg)

			case GetState:
				msg.Reply <- Info{
					Version:    r.version,
					NumClients: len(r.clients),
					TimerArmed: r.timer != nil,
					View:       ViewOf(r.state),
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

// join registers the client and hands it the current snapshot. An outbox
// that cannot take that first snapshot is closed instead of registered.
func (r *Room) join(msg Join) {
	if old, ok := r.clients[msg.ClientID]; ok {
		delete(r.clients, msg.ClientID)
		if old != msg.Outbox {
			close(old)
		}
	}
	select {
	case msg.Outbox <- Snapshot{Version: r.version, View: ViewOf(r.state)}:
		r.clients[msg.ClientID] = msg.Outbox
	default:
		r.log.Warn("outbox full on join; client refused", zap.String("client", msg.ClientID))
		close(msg.Outbox)
	}
}

func (r *Room) handleCommand(cmd engine.Command) {
	if cmd.Type == engine.CmdTick {
		// Ticks only come from our own timer.
		r.log.Warn("client sent a tick; ignored")
		return
	}

	events, newState, err := engine.Apply(r.state, cmd, r.rng)
	if err != nil {
		r.log.Debug("command rejected", zap.String("cmd", string(cmd.Type)), zap.Error(err))
		return
	}
	if len(events) == 0 {
		// Guarded no-op, e.g. a draw with no candidates.
		r.log.Debug("command had no effect", zap.String("cmd", string(cmd.Type)))
		return
	}

	r.state = newState
	started := engine.ContainsEvent(events, engine.EvtDrawStarted)
	if started || engine.ContainsEvent(events, engine.EvtInputCleared) {
		// The previous draw is over; its timer must be gone before anything
		// new is armed. Fires already queued fail the session check.
		r.stopTimer()
	}
	if started {
		r.armTimer(r.state.Session)
		r.log.Info("draw started",
			zap.Int("session", r.state.Session),
			zap.Int("candidates", len(r.state.Snapshot)))
	}
	r.publish(ViewOf(r.state))
}

func (r *Room) handleTick(msg tickFired) {
	if msg.Session != r.state.Session {
		r.log.Debug("dropping stale tick", zap.Int("tick_session", msg.Session), zap.Int("session", r.state.Session))
		return
	}

	prev := r.state
	events, newState, err := engine.Apply(r.state, engine.Command{Type: engine.CmdTick, Session: msg.Session}, r.rng)
	if err != nil {
		if errors.Is(err, engine.ErrStaleTick) {
			r.log.Debug("dropping stale tick", zap.Int("session", msg.Session), zap.Int("n", msg.N))
			return
		}
		r.log.Error("tick failed", zap.Error(err))
		return
	}
	r.state = newState

	if !engine.ContainsEvent(events, engine.EvtWinnerSettled) {
		r.publish(ViewOf(r.state))
		return
	}

	r.stopTimer()

	// The last pick gets its own snapshot before the winner replaces it.
	for _, e := range events {
		if e.Type == engine.EvtPickShown {
			v := ViewOf(prev)
			v.Pick = e.Name
			v.Tick = e.Tick
			r.publish(v)
		}
	}
	r.publish(ViewOf(r.state))
	r.log.Info("draw settled", zap.Int("session", r.state.Session), zap.String("winner", r.state.Winner))
}

func (r *Room) armTimer(session int) {
	rules := r.state.Rules
	r.timer = r.sched.Every(rules.TickInterval(), rules.TickCount(), func(ctx context.Context, n int) {
		select {
		case r.inbox <- tickFired{Session: session, N: n}:
		case <-ctx.Done():
		}
	})
}

func (r *Room) stopTimer() {
	if r.timer == nil {
		return
	}
	r.timer.Cancel()
	r.timer = nil
}

func (r *Room) shutdown() {
	r.stopTimer()
	for id, ch := range r.clients {
		close(ch) // Tell client no more snapshots
		delete(r.clients, id)
	}
	r.cancel()
}

func (r *Room) publish(v View) {
	r.version++
	r.broadcast(Snapshot{Version: r.version, View: v})
}

func (r *Room) broadcast(snap Snapshot) {
	for id, ch := range r.clients {
		select {
		case ch <- snap:
			//ok
		default:
			// Client is slow/full - drop them.
			r.log.Warn("dropping slow client", zap.String("client", id))
			close(ch)
			delete(r.clients, id)
		}
	}
}

// Inbox exposes the inbox so tests or the WS layer can send messages.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Send delivers m unless the room has already stopped.
func (r *Room) Send(m Msg) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.inbox <- m:
		return true
	case <-r.done:
		return false
	}
}

// Done is closed once the room's loop has exited.
func (r *Room) Done() <-chan struct{} { return r.done }
