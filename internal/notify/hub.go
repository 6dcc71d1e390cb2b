// Package notify delivers committed scoring outcomes to interested parties.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"example.com/tierrun/internal/domain"
)

// Message actions pushed over the websocket.
const (
	ActionRunScored        = "run_scored"
	ActionTierTransitioned = "tier_transitioned"
)

const writeWait = 5 * time.Second

// Message is the envelope written to websocket clients.
type Message struct {
	Action string `json:"action"`
	Data   any    `json:"data"`
	Source string `json:"source"`
}

// RunScoredPayload is the data of a run_scored message.
type RunScoredPayload struct {
	RunID    string    `json:"run_id"`
	Role     string    `json:"role"`
	LPEarned int       `json:"lp_earned"`
	Tier     string    `json:"tier"`
	Grade    int       `json:"grade"`
	LP       int       `json:"lp"`
	Progress float64   `json:"progress"`
	ScoredAt time.Time `json:"scored_at"`
}

// TransitionPayload is the data of a tier_transitioned message.
type TransitionPayload struct {
	Role       string    `json:"role"`
	Kind       string    `json:"kind"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	LP         int       `json:"lp"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Hub keeps the open websocket connections of each runner and pushes outcomes to them.
type Hub struct {
	mu          sync.Mutex
	connections map[string][]*websocket.Conn
	upgrader    websocket.Upgrader
	logger      *log.Logger
}

// HubOption configures the Hub.
type HubOption func(*Hub)

// WithHubLogger sets a custom logger.
func WithHubLogger(logger *log.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithOriginCheck restricts which origins may open a feed.
func WithOriginCheck(check func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		if check != nil {
			h.upgrader.CheckOrigin = check
		}
	}
}

// NewHub constructs an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		connections: make(map[string][]*websocket.Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: log.New(log.Writer(), "[notify] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ domain.Notifier = (*Hub)(nil)

// Serve upgrades the request and keeps the connection registered for runnerID
// until the client goes away. Client messages are discarded.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, runnerID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade feed for runner %s: %v", runnerID, err)
		return
	}
	// Hijacked connections keep the server's request deadlines.
	_ = conn.NetConn().SetDeadline(time.Time{})
	h.add(runnerID, conn)
	defer func() {
		h.remove(runnerID, conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Connections reports how many feeds are open for a runner.
func (h *Hub) Connections(runnerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections[runnerID])
}

// NotifyRunScored implements domain.Notifier.
func (h *Hub) NotifyRunScored(_ context.Context, run domain.Run, tier domain.TierRecord) error {
	h.send(run.RunnerID, Message{
		Action: ActionRunScored,
		Source: "tierrun",
		Data: RunScoredPayload{
			RunID:    run.ID,
			Role:     string(run.Role),
			LPEarned: run.LPEarned,
			Tier:     tier.State.Tier.String(),
			Grade:    tier.State.Grade,
			LP:       tier.State.LP,
			Progress: tier.State.Progress(),
			ScoredAt: run.UpdatedAt,
		},
	})
	return nil
}

// NotifyTransition implements domain.Notifier.
func (h *Hub) NotifyTransition(_ context.Context, t domain.TierTransition) error {
	h.send(t.RunnerID, Message{
		Action: ActionTierTransitioned,
		Source: "tierrun",
		Data: TransitionPayload{
			Role:       string(t.Role),
			Kind:       t.Kind.String(),
			From:       t.From.String(),
			To:         t.To.String(),
			LP:         t.LP,
			OccurredAt: t.OccurredAt,
		},
	})
	return nil
}

func (h *Hub) add(runnerID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[runnerID] = append(h.connections[runnerID], conn)
	h.logger.Printf("feed opened for runner %s (%d open)", runnerID, len(h.connections[runnerID]))
}

func (h *Hub) remove(runnerID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(runnerID, conn)
}

func (h *Hub) removeLocked(runnerID string, conn *websocket.Conn) {
	conns := h.connections[runnerID]
	for i, c := range conns {
		if c == conn {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(h.connections, runnerID)
		return
	}
	h.connections[runnerID] = conns
}

// send writes to every feed of the runner. Feeds that fail to accept the write are closed.
func (h *Hub) send(runnerID string, message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.connections[runnerID]
	if len(conns) == 0 {
		return
	}
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Printf("marshal %s for runner %s: %v", message.Action, runnerID, err)
		return
	}

	for _, conn := range append([]*websocket.Conn(nil), conns...) {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Printf("write %s to runner %s: %v", message.Action, runnerID, err)
			conn.Close()
			h.removeLocked(runnerID, conn)
		}
	}
}
