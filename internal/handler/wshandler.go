package handler

// wshandler is code for handling GraphQL requests over a websocket.  It supports both commonly used WS protocols
// * subscriptions-transport-ws: early protocol from Apollo (sub-protocol name:graphql-ws)
// * graphql-ws is newer (official?) ws transport (sub-protocol name:graphql-transport-ws).
// Each query/mutation gets a single result followed by "complete".  Subscriptions are not supported.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Close codes of the graphql-transport-ws protocol
const (
	closeBadRequest   = 4400
	closeInitTimeout  = 4408
	closeTooManyInits = 4429
)

type (
	wsConnection struct {
		*websocket.Conn // handle for WS communications

		h *Handler // we need this for the schema etc

		mu          sync.Mutex // serialises writes since keep-alive messages are sent from another go routine
		newProtocol bool       // default to old
		lastErr     error      // last read error
	}

	wsMessage struct {
		Type    string          `json:"type"`
		ID      string          `json:"id,omitempty"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}

	// wsReply is a message sent to the client
	wsReply struct {
		Type    string      `json:"type"`
		ID      string      `json:"id,omitempty"`
		Payload interface{} `json:"payload,omitempty"`
	}
)

var upgrader = websocket.Upgrader{
	CheckOrigin:  func(r *http.Request) bool { return true },
	Subprotocols: []string{"graphql-transport-ws", "graphql-ws"},
}

// serveWS is called in response to a GraphQL HTTP request wanting to upgrade to a WS.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("wsConnection upgrade error:", err)
		// nothing else required here as w's HTTP status has already been set
		return
	}
	c := &wsConnection{
		Conn:        conn,
		h:           h,
		newProtocol: conn.Subprotocol() == "graphql-transport-ws", // else assume it's the "old" (graphql-ws) WS sub-protocol
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel() // stop keep-alive messages
		if err := c.Close(); err != nil {
			log.Println("wsConnection close error:", err)
		}
	}()

	if !c.init() {
		return
	}
	go c.keepAlive(ctx)

	for {
		c.extendDeadline()
		message := c.read()
		if message == nil {
			return
		}

		switch message.Type {
		case "subscribe", "start":
			if !c.run(ctx, message) {
				return
			}

		case "complete", "stop":
			// every operation is completed as soon as its result is sent so there is nothing to stop

		case "ping":
			c.write(wsReply{Type: "pong"})

		case "pong":
			// the read deadline has already been extended

		case "connection_init":
			c.closeWith(closeTooManyInits, "Too many initialisation requests")
			return

		case "connection_terminate":
			c.closeWith(websocket.CloseNormalClosure, "")
			return

		default:
			log.Println("wsConnection unexpected message type:", message.Type)
			c.closeWith(closeBadRequest, "Unexpected message type "+message.Type)
			return
		}
	}
}

// init handles the initial (high level) handshake by receiving an "init" message and sending an "ack"
func (c *wsConnection) init() bool {
	_ = c.SetReadDeadline(time.Now().Add(c.h.initialTimeout))
	message := c.read()
	if message == nil {
		var netErr interface{ Timeout() bool }
		if c.newProtocol && errors.As(c.lastErr, &netErr) && netErr.Timeout() {
			c.closeWith(closeInitTimeout, "Connection initialisation timeout")
		}
		return false
	}
	if message.Type == "connection_terminate" {
		c.closeWith(websocket.CloseNormalClosure, "")
		return false
	}
	if message.Type != "connection_init" {
		log.Println("wsConnection init error: got message type", message.Type)
		if c.newProtocol {
			c.closeWith(closeBadRequest, "Expected connection_init message")
		} else {
			c.write(wsReply{Type: "connection_error"})
		}
		return false
	}
	return c.write(wsReply{Type: "connection_ack"})
}

// run executes a query or mutation and sends the result.  It returns false if the connection should be closed.
func (c *wsConnection) run(ctx context.Context, message *wsMessage) bool {
	g := gqlRequest{h: c.h}
	if err := decodeJSON(bytes.NewReader(message.Payload), &g); err != nil {
		log.Println("wsConnection payload decode error:", err)
		c.closeWith(closeBadRequest, "Invalid message payload")
		return false
	}
	FixNumberVariables(g.Variables)

	result := g.Execute(ctx)
	switch {
	case result.Data == nil && c.newProtocol:
		// request error (eg validation) - "error" is the final message for the operation
		return c.write(wsReply{Type: "error", ID: message.ID, Payload: result.Errors})
	case result.Data == nil:
		var first *gqlerror.Error
		if len(result.Errors) > 0 {
			first = result.Errors[0]
		}
		if !c.write(wsReply{Type: "error", ID: message.ID, Payload: first}) {
			return false
		}
	case c.newProtocol:
		if !c.write(wsReply{Type: "next", ID: message.ID, Payload: result}) {
			return false
		}
	default:
		if !c.write(wsReply{Type: "data", ID: message.ID, Payload: result}) {
			return false
		}
	}
	return c.write(wsReply{Type: "complete", ID: message.ID})
}

// keepAlive sends a "ping" (new protocol) or "ka" (old protocol) message periodically until ctx is done
func (c *wsConnection) keepAlive(ctx context.Context) {
	messageType := "ping"
	if !c.newProtocol {
		messageType = "ka"
		c.write(wsReply{Type: messageType}) // old protocol expects a "ka" straight after the ack
	}
	ticker := time.NewTicker(c.h.pingFrequency)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !c.write(wsReply{Type: messageType}) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// extendDeadline sets how long we wait for the next message.  With the new protocol the client must
// reply to pings so if nothing arrives within the ping period (plus the pong timeout) the client is dead.
func (c *wsConnection) extendDeadline() {
	if !c.newProtocol {
		_ = c.SetReadDeadline(time.Time{})
		return
	}
	_ = c.SetReadDeadline(time.Now().Add(c.h.pingFrequency + c.h.pongTimeout))
}

func (c *wsConnection) write(reply wsReply) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.WriteJSON(reply); err != nil {
		log.Println("wsConnection write error:", err)
		return false
	}
	return true
}

func (c *wsConnection) closeWith(code int, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func (c *wsConnection) read() *wsMessage {
	_, reader, err := c.NextReader()
	if err != nil {
		c.lastErr = err
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			log.Println("wsConnection read error:", err)
		}
		return nil
	}

	var message wsMessage
	decoder := json.NewDecoder(reader)
	decoder.UseNumber() // allows us to distinguish ints from floats in Variables map (see also FixNumberVariables())
	if err = decoder.Decode(&message); err != nil {
		log.Println("wsConnection decode error:", err)
		code := websocket.CloseUnsupportedData
		if c.newProtocol {
			code = closeBadRequest
		}
		c.closeWith(code, "Invalid message")
		return nil
	}
	return &message
}
