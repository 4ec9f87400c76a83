// Package solanaws is the live-subscription transport for the pool
// watcher: a gorilla/websocket JSON-RPC client speaking programSubscribe
// and logsSubscribe. It is grounded on the teacher's only websocket
// consumer, stream.HeliusStream.Connect/Listen, generalized with the
// request/response/notification envelope shapes of
// guidebee-SolRoute/pkg/subscription.WebSocketClient.
//
// Unlike guidebee's client, this one does not run a background
// handleReconnection goroutine: recovery from a dropped subscription is
// the watcher's periodic resync, not exception unwinding inside the
// transport. A read error simply ends Listen; the caller decides whether
// to redial.
package solanaws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope, used to learn the
// server-assigned subscription id that corresponds to a request id.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NotificationMessage is a subscription push from the server.
type NotificationMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type subParams struct {
	Result       json.RawMessage `json:"result"`
	Subscription uint64          `json:"subscription"`
}

// AccountValue is the account payload of a programNotification.
type AccountValue struct {
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

// ProgramNotification is one programSubscribe push: an account that
// changed under the subscribed program.
type ProgramNotification struct {
	Pubkey  string
	Account AccountValue
	Slot    uint64
}

// LogsNotification is one logsSubscribe push: the log lines of a
// transaction mentioning the subscribed program.
type LogsNotification struct {
	Signature string
	Err       interface{}
	Logs      []string
	Slot      uint64
}

type subscriptionKind int

const (
	kindProgram subscriptionKind = iota
	kindLogs
)

// Handlers receives decoded notifications from Listen.
type Handlers struct {
	OnProgram func(program string, n ProgramNotification)
	OnLogs    func(program string, n LogsNotification)
}

// Client is a single websocket connection multiplexing any number of
// programSubscribe/logsSubscribe subscriptions.
type Client struct {
	conn   *websocket.Conn
	logger *logrus.Logger

	mu        sync.Mutex
	nextID    uint64
	pending   map[uint64]string // request id -> program, awaiting subscription id
	subKind   map[uint64]subscriptionKind
	subOwner  map[uint64]string // solana subscription id -> program
}

// Dial opens the websocket connection. It does not subscribe to anything
// yet; call SubscribeProgram/SubscribeLogs afterward.
func Dial(ctx context.Context, url string, logger *logrus.Logger) (*Client, error) {
	if logger == nil {
		logger = logrus.New()
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("solanaws: dial %s: %w", url, err)
	}
	return &Client{
		conn:     conn,
		logger:   logger,
		pending:  make(map[uint64]string),
		subKind:  make(map[uint64]subscriptionKind),
		subOwner: make(map[uint64]string),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SubscribeProgram sends a programSubscribe request for program, base64
// account encoding, "processed" commitment (spec.md §4.D commitment
// handling).
func (c *Client) SubscribeProgram(program string) error {
	return c.subscribe(program, kindProgram, "programSubscribe", []interface{}{
		program,
		map[string]interface{}{
			"encoding":   "base64",
			"commitment": "processed",
		},
	})
}

// SubscribeLogs sends a logsSubscribe request mentioning program.
func (c *Client) SubscribeLogs(program string) error {
	return c.subscribe(program, kindLogs, "logsSubscribe", []interface{}{
		map[string]interface{}{"mentions": []string{program}},
		map[string]interface{}{"commitment": "processed"},
	})
}

func (c *Client) subscribe(program string, kind subscriptionKind, method string, params []interface{}) error {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.pending[id] = program
	c.subKind[id] = kind
	c.mu.Unlock()

	req := RPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("solanaws: marshal %s request: %w", method, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("solanaws: write %s request: %w", method, err)
	}
	return nil
}

// Listen blocks reading notifications until ctx is done or a read fails.
// On a read error it logs and returns; the caller's resync timer is the
// only recovery path (no automatic reconnect here).
func (c *Client) Listen(ctx context.Context, h Handlers) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.logger.WithError(err).Warn("solanaws: read error, ending listen loop")
			return fmt.Errorf("solanaws: read: %w", err)
		}
		c.handleMessage(msg, h)
	}
}

func (c *Client) handleMessage(data []byte, h Handlers) {
	var notif NotificationMessage
	if err := json.Unmarshal(data, &notif); err == nil && notif.Method != "" {
		c.handleNotification(notif, h)
		return
	}

	var resp RPCResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.WithError(err).Debug("solanaws: unrecognized message")
		return
	}
	c.handleResponse(resp)
}

func (c *Client) handleResponse(resp RPCResponse) {
	if resp.Error != nil {
		c.logger.WithFields(logrus.Fields{
			"code":    resp.Error.Code,
			"message": resp.Error.Message,
		}).Warn("solanaws: subscribe request failed")
		return
	}

	var subID uint64
	if err := json.Unmarshal(resp.Result, &subID); err != nil {
		return
	}

	c.mu.Lock()
	program, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
		c.subOwner[subID] = program
		c.subKind[subID] = c.subKind[resp.ID]
	}
	c.mu.Unlock()
}

func (c *Client) handleNotification(notif NotificationMessage, h Handlers) {
	var params subParams
	if err := json.Unmarshal(notif.Params, &params); err != nil {
		return
	}

	c.mu.Lock()
	program, ok := c.subOwner[params.Subscription]
	kind := c.subKind[params.Subscription]
	c.mu.Unlock()
	if !ok {
		return
	}

	switch notif.Method {
	case "programNotification":
		if h.OnProgram == nil {
			return
		}
		var value struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Pubkey  string       `json:"pubkey"`
				Account AccountValue `json:"account"`
			} `json:"value"`
		}
		if err := json.Unmarshal(params.Result, &value); err != nil {
			return
		}
		h.OnProgram(program, ProgramNotification{
			Pubkey:  value.Value.Pubkey,
			Account: value.Value.Account,
			Slot:    value.Context.Slot,
		})
	case "logsNotification":
		if h.OnLogs == nil || kind != kindLogs {
			return
		}
		var value struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Signature string      `json:"signature"`
				Err       interface{} `json:"err"`
				Logs      []string    `json:"logs"`
			} `json:"value"`
		}
		if err := json.Unmarshal(params.Result, &value); err != nil {
			return
		}
		h.OnLogs(program, LogsNotification{
			Signature: value.Value.Signature,
			Err:       value.Value.Err,
			Logs:      value.Value.Logs,
			Slot:      value.Context.Slot,
		})
	}
}

// DecodeAccountData returns the raw account bytes carried by a
// programNotification's base64-encoded data field.
func DecodeAccountData(v AccountValue) ([]byte, error) {
	if len(v.Data) == 0 {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(v.Data[0])
	if err != nil {
		return nil, fmt.Errorf("solanaws: decode account data: %w", err)
	}
	return raw, nil
}
