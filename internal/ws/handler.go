package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ariana-dev/timeline-gateway/internal/metrics"
	"github.com/ariana-dev/timeline-gateway/internal/timeline"
	"github.com/ariana-dev/timeline-gateway/internal/trace"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RecordSource supplies the current record snapshot for a vault.
// trace.Store satisfies it.
type RecordSource interface {
	Records(vaultKey string) ([]trace.Record, error)
}

// HandlerConfig holds the shared collaborators for all webview sessions.
type HandlerConfig struct {
	Source        RecordSource
	Hub           *Hub
	MaxConcurrent int
}

// Handler manages webview WebSocket sessions with admission control.
type Handler struct {
	cfg HandlerConfig
	sem chan struct{}
}

// NewHandler creates a WebSocket handler with a concurrency limit.
func NewHandler(cfg HandlerConfig) *Handler {
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 100
	}
	return &Handler{
		cfg: cfg,
		sem: make(chan struct{}, maxConc),
	}
}

// hello is the first text frame sent by the webview.
type hello struct {
	VaultKey       string   `json:"vault_key"`
	WorkspaceRoots []string `json:"workspace_roots"`
}

// frame is any subsequent client message. Type is one of "refresh",
// "workspace_roots", "highlight".
type frame struct {
	Type           string   `json:"type"`
	WorkspaceRoots []string `json:"workspace_roots,omitempty"`
	Filepath       string   `json:"filepath,omitempty"`
	StartLine      int      `json:"start_line,omitempty"`
	StartCol       int      `json:"start_col,omitempty"`
	EndLine        int      `json:"end_line,omitempty"`
	EndCol         int      `json:"end_col,omitempty"`
}

// ServeHTTP upgrades the connection and runs the webview session.
// Returns 503 at max concurrent session capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.WebviewsActive.Inc()
	metrics.WebviewsTotal.Inc()
	defer metrics.WebviewsActive.Dec()

	h.runSession(conn)
}

func (h *Handler) runSession(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	meta, err := readHello(conn)
	if err != nil {
		slog.Error("read hello", "error", err)
		return
	}
	sess := &session{
		handler: h,
		conn:    conn,
		vault:   meta.VaultKey,
		roots:   meta.WorkspaceRoots,
	}
	if sess.vault == "" {
		sess.writeError("vault_key required")
		return
	}

	updates, unsubscribe := h.cfg.Hub.Subscribe(sess.vault)
	defer unsubscribe()
	sess.updates = updates

	slog.Info("webview connected", "vault", sess.vault, "roots", len(sess.roots))

	sess.pushTimeline()
	go sess.forwardUpdates(ctx)
	sess.readLoop()

	slog.Info("webview disconnected", "vault", sess.vault)
}

func readHello(conn *websocket.Conn) (hello, error) {
	var meta hello
	_, data, err := conn.ReadMessage()
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

// session is one connected webview. writeMu serializes frame writes between
// the read loop and the update forwarder.
type session struct {
	handler *Handler
	conn    *websocket.Conn
	vault   string
	updates chan []byte

	mu      sync.Mutex // guards roots
	writeMu sync.Mutex
	roots   []string
}

// readLoop consumes client frames until the connection closes. The first
// frame (hello) was already consumed by runSession.
func (s *session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("webview read", "vault", s.vault, "error", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.writeError("malformed frame")
			continue
		}

		switch f.Type {
		case "refresh":
			s.pushTimeline()
		case "workspace_roots":
			s.mu.Lock()
			s.roots = f.WorkspaceRoots
			s.mu.Unlock()
			s.pushTimeline()
		case "highlight":
			// Fire-and-forget: rebroadcast to vault peers (the editor side),
			// never answered.
			metrics.HighlightRequests.Inc()
			s.handler.cfg.Hub.Broadcast(s.vault, data, s.updates)
		default:
			s.writeError("unknown frame type")
		}
	}
}

// forwardUpdates turns hub signals into timeline pushes and relays peer
// frames verbatim.
func (s *session) forwardUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.updates:
			if !ok {
				return
			}
			if msg == nil {
				s.pushTimeline()
				continue
			}
			s.write(msg)
		}
	}
}

// pushTimeline rebuilds the vault's timeline from the record snapshot and
// sends it. Superseded builds are simply replaced by the next push.
func (s *session) pushTimeline() {
	records, err := s.handler.cfg.Source.Records(s.vault)
	if err != nil {
		slog.Warn("load records", "vault", s.vault, "error", err)
		s.writeError("vault unavailable")
		return
	}

	s.mu.Lock()
	roots := s.roots
	s.mu.Unlock()

	start := time.Now()
	tl := timeline.Build(records, roots)
	metrics.ObserveBuild(time.Since(start), len(tl.Spans), len(tl.Families))

	payload, err := json.Marshal(map[string]any{"type": "timeline", "payload": tl})
	if err != nil {
		slog.Error("encode timeline", "vault", s.vault, "error", err)
		return
	}
	s.write(payload)
}

func (s *session) write(data []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Warn("webview write", "vault", s.vault, "error", err)
	}
}

func (s *session) writeError(msg string) {
	payload, _ := json.Marshal(map[string]string{"type": "error", "message": msg})
	s.write(payload)
}
