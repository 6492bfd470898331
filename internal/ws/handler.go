package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lottery-backend/internal/engine"
	"github.com/DoyleJ11/lottery-backend/internal/hub"
	"github.com/DoyleJ11/lottery-backend/internal/room"
	"github.com/DoyleJ11/lottery-backend/internal/types"
)

const writeTimeout = 3 * time.Second

// Handler upgrades /ws?code=XXXXXX and bridges the socket to that room.
// originPatterns is passed to websocket.Accept; empty means same-origin only.
func Handler(h *hub.Hub, log *zap.Logger, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		rm := h.Lookup(code)
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			log.Warn("websocket accept failed", zap.String("code", code), zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan room.Snapshot, 32) // a full draw is 17 snapshots
		clientID := uuid.NewString()
		clog := log.With(zap.String("code", code), zap.String("client", clientID))

		if !rm.Send(room.Join{ClientID: clientID, Outbox: out}) {
			conn.Close(websocket.StatusGoingAway, "room closed")
			return
		}
		defer rm.Send(room.Leave{ClientID: clientID})
		clog.Debug("client joined")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case snap, ok := <-out:
					if !ok {
						// Room dropped us or shut down.
						conn.Close(websocket.StatusGoingAway, "room closed")
						return
					}
					view := snap.View
					msg := types.ServerMessage{Type: types.MsgStateSnapshot, Version: snap.Version, State: &view}
					if err := writeJSON(writeCtx, conn, msg); err != nil {
						clog.Debug("write failed", zap.Error(err))
						return
					}
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					clog.Debug("client left")
				default:
					clog.Debug("read failed", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = writeJSON(r.Context(), conn, types.ServerMessage{Type: types.MsgError, Error: "bad json"})
				continue
			}

			cmd, ok := toEngineCommand(cm)
			if !ok {
				_ = writeJSON(r.Context(), conn, types.ServerMessage{Type: types.MsgError, Error: "unknown type"})
				continue
			}

			if !rm.Send(room.FromClient{Cmd: cmd}) {
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func toEngineCommand(m types.ClientMessage) (engine.Command, bool) {
	switch m.Type {
	case types.MsgSetCandidates:
		return engine.Command{Type: engine.CmdSetInput, Text: m.Text}, true
	case types.MsgStartDraw:
		return engine.Command{Type: engine.CmdStartDraw}, true
	case types.MsgReset:
		return engine.Command{Type: engine.CmdReset}, true
	case types.MsgClear:
		return engine.Command{Type: engine.CmdClear}, true
	default:
		return engine.Command{}, false
	}
}
