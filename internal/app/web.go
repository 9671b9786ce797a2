// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/relabs-tech/inertial_fusion/internal/config"
	"github.com/relabs-tech/inertial_fusion/internal/orientation"
)

const (
	wsWriteTimeout  = time.Second
	shutdownTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local network only
	},
}

// wsClient serializes writes to one websocket connection.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) write(state orientation.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeState(c.conn, state)
}

// poseHub keeps the latest state and fans it out to websocket clients.
type poseHub struct {
	logger *zap.SugaredLogger

	mu      sync.RWMutex
	last    orientation.State
	have    bool
	clients map[*wsClient]struct{}
}

func newPoseHub(logger *zap.SugaredLogger) *poseHub {
	return &poseHub{logger: logger, clients: map[*wsClient]struct{}{}}
}

// Update stores state and pushes it to every connected client. Writes happen
// outside the hub lock; clients that fail the write are dropped.
func (h *poseHub) Update(state orientation.State) {
	h.mu.Lock()
	h.last = state
	h.have = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(state); err != nil {
			h.logger.Debugf("websocket client %s dropped: %v", c.conn.RemoteAddr(), err)
			h.remove(c)
		}
	}
}

// remove unregisters c and closes its connection once.
func (h *poseHub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// Latest returns the last state and whether one has arrived.
func (h *poseHub) Latest() (orientation.State, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last, h.have
}

func (h *poseHub) handleOrientation(w http.ResponseWriter, r *http.Request) {
	state, ok := h.Latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		h.logger.Warnf("json encode error: %v", err)
	}
}

func (h *poseHub) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade error: %v", err)
		return
	}

	// The client's write lock is taken before it becomes visible to Update,
	// so the current state always reaches it before any newer one.
	c := &wsClient{conn: conn}
	c.mu.Lock()
	h.mu.Lock()
	state, have := h.last, h.have
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	if have {
		err = writeState(conn, state)
	}
	c.mu.Unlock()
	if err != nil {
		h.remove(c)
		return
	}

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

// clientCount returns the number of connected websocket clients.
func (h *poseHub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects every websocket client.
func (h *poseHub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = map[*wsClient]struct{}{}
	h.mu.Unlock()
	for c := range clients {
		c.conn.Close()
	}
}

func writeState(conn *websocket.Conn, state orientation.State) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(state)
}

// newWebMux serves the JSON API, the live websocket feed and static files
// from staticDir.
func newWebMux(hub *poseHub, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/orientation", hub.handleOrientation)
	mux.HandleFunc("/ws/orientation", hub.handleWebsocket)
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	return mux
}

// RunWeb subscribes to the fused state and serves it over HTTP until ctx is
// done.
func RunWeb(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	hub := newPoseHub(logger)

	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDWeb, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(disconnectQuiesceMS)

	if err := subscribeStates(client, cfg.MQTT.TopicPose, logger, hub.Update); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:           newWebMux(hub, "web"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("web server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "web server")
	case <-ctx.Done():
	}

	hub.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "web server shutdown")
	}
	return nil
}
