package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lottery-backend/internal/engine"
	"github.com/DoyleJ11/lottery-backend/internal/hub"
	"github.com/DoyleJ11/lottery-backend/internal/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, _ := newTestServerWithHub(t)
	return srv
}

func newTestServerWithHub(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(ctx, zap.NewNop())
	srv := httptest.NewServer(SetupRoutes(h, zap.NewNop(), nil))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv, h
}

// connectAndLeave opens a socket to the room, reads the join snapshot and
// closes the connection.
func connectAndLeave(t *testing.T, wsURL string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	join := readServerMessage(t, ctx, conn)
	require.Equal(t, types.MsgStateSnapshot, join.Type)
	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
}

// settledGoroutines waits for the goroutine count to drop to at most limit
// and returns the last count seen.
func settledGoroutines(limit int, within time.Duration) int {
	deadline := time.Now().Add(within)
	n := runtime.NumGoroutine()
	for n > limit && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
		n = runtime.NumGoroutine()
	}
	return n
}

func createRoom(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/rooms", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body createRoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Code, codeLength)
	return body.Code
}

func readServerMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) types.ServerMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg types.ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func writeClientMessage(t *testing.T, ctx context.Context, conn *websocket.Conn, msg types.ClientMessage) {
	t.Helper()
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, payload))
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode()
	require.NoError(t, err)
	assert.Len(t, code, codeLength)
	assert.Equal(t, strings.ToUpper(code), code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRooms_CreateGetDelete(t *testing.T) {
	srv := newTestServer(t)
	code := createRoom(t, srv)

	resp, err := http.Get(srv.URL + "/rooms/" + code)
	require.NoError(t, err)
	var got roomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, code, got.Code)
	assert.Equal(t, engine.StatusIdle, got.State.Status)
	assert.Equal(t, 0, got.State.Count)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/rooms/"+code, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/rooms/" + code)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWS_UnknownRoom(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/ws?code=NOPE00")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWS_FullDraw(t *testing.T) {
	srv := newTestServer(t)
	code := createRoom(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?code=" + code
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	join := readServerMessage(t, ctx, conn)
	require.Equal(t, types.MsgStateSnapshot, join.Type)
	require.Equal(t, engine.StatusIdle, join.State.Status)

	writeClientMessage(t, ctx, conn, types.ClientMessage{Type: "Bogus"})
	bad := readServerMessage(t, ctx, conn)
	assert.Equal(t, types.MsgError, bad.Type)

	writeClientMessage(t, ctx, conn, types.ClientMessage{Type: types.MsgSetCandidates, Text: "Alice\nBob\n\n  Carol  \n"})
	input := readServerMessage(t, ctx, conn)
	require.Equal(t, 3, input.State.Count)

	writeClientMessage(t, ctx, conn, types.ClientMessage{Type: types.MsgStartDraw})
	started := readServerMessage(t, ctx, conn)
	require.Equal(t, engine.StatusDrawing, started.State.Status)

	picks := 0
	var final types.ServerMessage
	for {
		msg := readServerMessage(t, ctx, conn)
		require.Equal(t, types.MsgStateSnapshot, msg.Type)
		if msg.State.Status == engine.StatusSettled {
			final = msg
			break
		}
		picks++
		assert.Contains(t, []string{"Alice", "Bob", "Carol"}, msg.State.Pick)
	}
	assert.Equal(t, engine.DefaultTicks, picks)
	assert.Contains(t, []string{"Alice", "Bob", "Carol"}, final.State.Winner)

	writeClientMessage(t, ctx, conn, types.ClientMessage{Type: types.MsgReset})
	reset := readServerMessage(t, ctx, conn)
	assert.Equal(t, engine.StatusIdle, reset.State.Status)
	assert.Empty(t, reset.State.Winner)
	assert.Equal(t, 3, reset.State.Count)

	writeClientMessage(t, ctx, conn, types.ClientMessage{Type: types.MsgClear})
	cleared := readServerMessage(t, ctx, conn)
	assert.Equal(t, 0, cleared.State.Count)
	assert.Empty(t, cleared.State.Input)
}

func TestWS_DisconnectReleasesGoroutines(t *testing.T) {
	srv := newTestServer(t)
	code := createRoom(t, srv)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?code=" + code

	// one round first so pooled connections and lazy runtime goroutines exist
	connectAndLeave(t, wsURL)
	before := settledGoroutines(0, 200*time.Millisecond)

	const clients = 20
	for i := 0; i < clients; i++ {
		connectAndLeave(t, wsURL)
	}

	after := settledGoroutines(before+2, 2*time.Second)
	assert.LessOrEqual(t, after, before+2, "goroutines before=%d after %d connect/disconnect=%d", before, clients, after)

	resp, err := http.Get(srv.URL + "/rooms/" + code)
	require.NoError(t, err)
	var got roomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	assert.Equal(t, 0, got.NumClients)
}

func TestRooms_StoppedHubFailsFast(t *testing.T) {
	srv, h := newTestServerWithHub(t)
	code := createRoom(t, srv)

	h.Inbox() <- hub.ShutdownHub{}
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatalf("hub did not stop")
	}

	client := &http.Client{Timeout: time.Second}

	resp, err := client.Post(srv.URL+"/rooms", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/rooms/"+code, nil)
	require.NoError(t, err)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
