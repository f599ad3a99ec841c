// Package gateway maintains the persistent websocket session with the
// chat platform and turns admin messages into bulk workflow commands.
//
// The session follows the platform handshake: the server opens with a
// hello frame carrying the heartbeat interval, the client identifies
// with its bot token, then message events arrive as dispatch frames.
// A supervisor loop redials dropped sessions with capped exponential
// backoff so a flaky network never takes the command surface down for
// good.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/driftwatch/driftwatch/pkg/approval"
	"github.com/driftwatch/driftwatch/pkg/bundle"
	"github.com/driftwatch/driftwatch/pkg/constants"
	"github.com/driftwatch/driftwatch/pkg/errors"
	"github.com/driftwatch/driftwatch/pkg/logging"
)

// DefaultURL is the production gateway endpoint.
const DefaultURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// Gateway opcodes, per the platform wire contract.
const (
	opDispatch     = 0
	opHeartbeat    = 1
	opIdentify     = 2
	opHello        = 10
	opHeartbeatAck = 11
)

// Intent bits requested at identify time. Guild messages plus message
// content is the minimum for reading admin commands.
const (
	intentGuildMessages  = 1 << 9
	intentMessageContent = 1 << 15
)

const eventMessageCreate = "MESSAGE_CREATE"

// fallbackHeartbeat is used when the hello frame carries no usable
// interval.
const fallbackHeartbeat = 30 * time.Second

// payload is the envelope every gateway frame travels in.
type payload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  int64           `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

// Responder posts command replies back to the channel they came from.
// *notify.Notifier satisfies it.
type Responder interface {
	PostText(ctx context.Context, channelID, content string) error
}

// Gateway is the supervised websocket client. Create one with New and
// run it with Run; it is not restartable after Run returns.
type Gateway struct {
	token     string
	url       string
	adminID   string
	manager   *approval.Manager
	bundles   *bundle.Reconciler
	responder Responder

	backoffBase time.Duration
	backoffMax  time.Duration

	// mu guards conn so heartbeats and command replies never
	// interleave mid-frame.
	mu   sync.Mutex
	conn *websocket.Conn
}

// New builds a gateway client. The manager and reconciler handle the
// admin commands; the responder carries replies.
func New(token string, manager *approval.Manager, bundles *bundle.Reconciler, responder Responder, opts ...Option) *Gateway {
	g := &Gateway{
		token:       token,
		url:         DefaultURL,
		manager:     manager,
		bundles:     bundles,
		responder:   responder,
		backoffBase: constants.GatewayBackoffBase,
		backoffMax:  constants.GatewayBackoffMax,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run dials the gateway and services the session until ctx is
// canceled. Dropped sessions are redialed with exponential backoff,
// reset after any session that held for a while.
func (g *Gateway) Run(ctx context.Context) error {
	backoff := g.backoffBase
	for {
		started := time.Now()
		err := g.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) > 2*g.backoffMax {
			backoff = g.backoffBase
		}

		logging.Warn().
			Err(err).
			Dur("retry_in", backoff).
			Msg("Gateway session ended; reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > g.backoffMax {
			backoff = g.backoffMax
		}
	}
}

// session runs one connection from dial to disconnect.
func (g *Gateway) session(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, g.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dialing gateway: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dialing gateway: %w", err)
	}
	defer conn.Close()

	// Closing the socket is the only way to unblock a pending read
	// when ctx is canceled.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	g.setConn(conn)
	defer g.setConn(nil)

	var seq atomic.Int64

	interval, err := g.handshake(conn)
	if err != nil {
		return err
	}

	hbCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go g.heartbeatLoop(hbCtx, interval, &seq)

	logging.Info().
		Dur("heartbeat_interval", interval).
		Msg("Gateway connected")

	for {
		var frame payload
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("reading frame: %w", err)
			}
			return err
		}
		if frame.S != 0 {
			seq.Store(frame.S)
		}

		switch frame.Op {
		case opDispatch:
			if frame.T == eventMessageCreate {
				g.handleMessage(ctx, frame.D)
			}
		case opHeartbeat:
			// Server asked for an immediate beat.
			if err := g.sendHeartbeat(&seq); err != nil {
				return fmt.Errorf("answering heartbeat request: %w", err)
			}
		case opHeartbeatAck:
		}
	}
}

// handshake consumes the hello frame and sends identify. It returns
// the heartbeat interval the server asked for.
func (g *Gateway) handshake(conn *websocket.Conn) (time.Duration, error) {
	var hello payload
	if err := conn.ReadJSON(&hello); err != nil {
		return 0, fmt.Errorf("reading hello: %w", err)
	}
	if hello.Op != opHello {
		return 0, fmt.Errorf("expected hello, got op %d", hello.Op)
	}

	var data struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.D, &data); err != nil {
		return 0, fmt.Errorf("decoding hello: %w", err)
	}
	interval := time.Duration(data.HeartbeatInterval) * time.Millisecond
	if interval <= 0 {
		interval = fallbackHeartbeat
	}

	if err := g.identify(); err != nil {
		return 0, fmt.Errorf("identifying: %w", err)
	}
	return interval, nil
}

func (g *Gateway) identify() error {
	type properties struct {
		OS      string `json:"os"`
		Browser string `json:"browser"`
		Device  string `json:"device"`
	}
	data := struct {
		Token      string     `json:"token"`
		Intents    int        `json:"intents"`
		Properties properties `json:"properties"`
	}{
		Token:   g.token,
		Intents: intentGuildMessages | intentMessageContent,
		Properties: properties{
			OS:      "linux",
			Browser: "driftwatch",
			Device:  "driftwatch",
		},
	}
	return g.send(opIdentify, data)
}

// heartbeatLoop beats at the server-supplied interval until the
// session context ends or a write fails.
func (g *Gateway) heartbeatLoop(ctx context.Context, interval time.Duration, seq *atomic.Int64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.sendHeartbeat(seq); err != nil {
				logging.Debug().Err(err).Msg("Heartbeat write failed")
				return
			}
		}
	}
}

func (g *Gateway) sendHeartbeat(seq *atomic.Int64) error {
	if s := seq.Load(); s != 0 {
		return g.send(opHeartbeat, s)
	}
	return g.write(payload{Op: opHeartbeat})
}

func (g *Gateway) send(op int, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding op %d: %w", op, err)
	}
	return g.write(payload{Op: op, D: raw})
}

func (g *Gateway) write(p payload) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return errors.New("gateway not connected")
	}
	_ = g.conn.SetWriteDeadline(time.Now().Add(constants.GatewayWriteTimeout))
	return g.conn.WriteJSON(p)
}

func (g *Gateway) setConn(conn *websocket.Conn) {
	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()
}
