package testutil

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient is a WebSocket test client speaking the broker protocol.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// DialWS connects to the broker with the given handshake credentials.
//
// Precondition: url must be a ws:// URL with a listening gateway.
// Postcondition: Returns a connected WSClient or fails the test.
func DialWS(t *testing.T, url, secret, playerName string) *WSClient {
	t.Helper()
	start := time.Now()

	header := http.Header{}
	header.Set("NetworkSecret", secret)
	header.Set("PlayerName", playerName)

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dialing %s as %q: %v (status %d) [%s]", url, playerName, err, status, time.Since(start))
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return &WSClient{conn: conn, t: t}
}

// TryDialWS attempts a handshake and returns the HTTP status code when the
// server refuses the upgrade. Used for handshake rejection tests.
//
// Postcondition: Returns (client, 0) on success or (nil, status) on refusal.
func TryDialWS(t *testing.T, url, secret, playerName string) (*WSClient, int) {
	t.Helper()

	header := http.Header{}
	if secret != "" {
		header.Set("NetworkSecret", secret)
	}
	if playerName != "" {
		header.Set("PlayerName", playerName)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		if resp == nil {
			t.Fatalf("dialing %s: %v with no response", url, err)
		}
		defer resp.Body.Close()
		return nil, resp.StatusCode
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return &WSClient{conn: conn, t: t}, 0
}

// Send marshals msg and writes it as one text frame.
func (c *WSClient) Send(msg any) {
	c.t.Helper()

	data, err := json.Marshal(msg)
	if err != nil {
		c.t.Fatalf("marshalling message: %v", err)
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Fatalf("sending message: %v", err)
	}
}

// SendRaw writes a raw text frame without JSON encoding.
func (c *WSClient) SendRaw(frame string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		c.t.Fatalf("sending raw frame: %v", err)
	}
}

// Recv reads one frame and decodes it into a generic map.
//
// Postcondition: Returns the decoded frame, or fails the test on timeout.
func (c *WSClient) Recv(timeout time.Duration) map[string]any {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		c.t.Fatalf("decoding frame %q: %v", data, err)
	}
	return decoded
}

// ExpectSilence asserts that no frame arrives within the given window.
// A timed-out read poisons the underlying connection, so this must be the
// last read performed on the client.
func (c *WSClient) ExpectSilence(window time.Duration) {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(window))
	_, data, err := c.conn.ReadMessage()
	if err == nil {
		c.t.Fatalf("expected no frame, got %q", data)
	}
}

// Close closes the underlying connection.
func (c *WSClient) Close() {
	_ = c.conn.Close()
}
