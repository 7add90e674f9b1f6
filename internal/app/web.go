// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/inertial_viewer/internal/pipeline"
)

const (
	clientBuffer = 16
	writeWait    = time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// ControlMessage is accepted on POST /api/control and over the websocket.
type ControlMessage struct {
	Action string `json:"action"`           // start, stop, source
	Source string `json:"source,omitempty"` // for action=source
}

// Status describes the controller.
type Status struct {
	State   string   `json:"state"`
	Source  string   `json:"source"`
	Session string   `json:"session,omitempty"`
	Sources []string `json:"sources"`
}

// Hub serves the viewer over HTTP and streams snapshots to websocket
// clients. It is a pipeline.Sink.
type Hub struct {
	ctrl  *pipeline.Controller
	panel *Panel
	base  context.Context

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub builds a hub driving ctrl. Sessions started from the web run
// under base. panel may be nil.
func NewHub(base context.Context, ctrl *pipeline.Controller, panel *Panel) *Hub {
	return &Hub{
		ctrl:    ctrl,
		panel:   panel,
		base:    base,
		clients: make(map[*wsClient]struct{}),
	}
}

// Publish encodes s without histories once and queues it for every
// websocket client. Clients whose queue is full miss this snapshot.
func (h *Hub) Publish(s pipeline.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}

	payload, err := json.Marshal(s.Compact())
	if err != nil {
		log.Printf("web: snapshot marshal error: %v", err)
		return
	}
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
		}
	}
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler returns the HTTP routes. Static files are served from staticDir
// when it is not empty.
func (h *Hub) Handler(staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/snapshot", h.handleSnapshot)
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/control", h.handleControl)
	mux.HandleFunc("/ws", h.handleWS)
	if h.panel != nil {
		mux.Handle("/api/panel.png", h.panel)
	}
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

func (h *Hub) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.ctrl.Snapshot()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Hub) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}

func (h *Hub) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var msg ControlMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, fmt.Sprintf("invalid control message: %v", err), http.StatusBadRequest)
		return
	}
	if err := h.apply(msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.status())
}

// apply runs one control action. A source change while running takes
// effect on the next start.
func (h *Hub) apply(msg ControlMessage) error {
	switch msg.Action {
	case "start":
		return h.ctrl.Start(h.base)
	case "stop":
		h.ctrl.Stop()
		return nil
	case "source":
		src, err := pipeline.ParseSource(msg.Source)
		if err != nil {
			return err
		}
		h.ctrl.SetSource(src)
		log.Printf("web: attitude source set to %s", src)
		return nil
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
}

func (h *Hub) status() Status {
	st := Status{
		State:   h.ctrl.State().String(),
		Source:  h.ctrl.Source().String(),
		Session: h.ctrl.Session(),
	}
	for _, s := range pipeline.Sources() {
		st.Sources = append(st.Sources, s.String())
	}
	return st
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	log.Printf("web: websocket client connected from %s", r.RemoteAddr)

	done := make(chan struct{})
	go h.writeLoop(c, done)

	// Read loop: control messages from the browser.
	for {
		var msg ControlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("web: websocket read error: %v", err)
			}
			break
		}
		if err := h.apply(msg); err != nil {
			log.Printf("web: control error: %v", err)
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(done)
	conn.Close()
}

func (h *Hub) writeLoop(c *wsClient, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("web: websocket write error: %v", err)
				c.conn.Close()
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}
