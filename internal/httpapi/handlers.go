package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lottery-backend/internal/engine"
	"github.com/DoyleJ11/lottery-backend/internal/hub"
	"github.com/DoyleJ11/lottery-backend/internal/room"
)

const codeLength = 6

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, codeLength)
	for i := 0; i < codeLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type createRoomResponse struct {
	Code string `json:"code"`
}

type roomResponse struct {
	Code       string    `json:"code"`
	Version    int       `json:"version"`
	NumClients int       `json:"num_clients"`
	State      room.View `json:"state"`
}

func CreateRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var code string
		for {
			c, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			if h.Lookup(c) == nil {
				code = c
				break
			}
			log.Debug("collision on code, regenerating", zap.String("code", c))
		}

		rm, err := h.Ensure(code, engine.NewIdleState())
		if errors.Is(err, hub.ErrHubStopped) {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		if rm == nil {
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, createRoomResponse{Code: code})
	}
}

func GetRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		rm := h.Lookup(code)
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		reply := make(chan room.Info, 1)
		if !rm.Send(room.GetState{Reply: reply}) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		select {
		case info := <-reply:
			writeJSON(w, http.StatusOK, roomResponse{
				Code:       code,
				Version:    info.Version,
				NumClients: info.NumClients,
				State:      info.View,
			})
		case <-rm.Done():
			http.Error(w, "room not found", http.StatusNotFound)
		case <-time.After(2 * time.Second):
			http.Error(w, "room busy", http.StatusServiceUnavailable)
		}
	}
}

func DeleteRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := h.Remove(chi.URLParam(r, "code"))
		if errors.Is(err, hub.ErrHubStopped) {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		if !removed {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
