package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/env_station/internal/config"
	"github.com/relabs-tech/env_station/internal/orientation"
	"github.com/relabs-tech/env_station/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local network viewer
	},
}

// WebFrame is what the web view receives: the decoded line plus the pose
// derived from it.
type WebFrame struct {
	Received time.Time         `json:"received"`
	Frame    telemetry.Frame   `json:"telemetry"`
	Pose     *orientation.Pose `json:"pose"` // nil without a valid accelerometer sample
}

// frameHub keeps the latest frame and fans new ones out to websocket
// clients. Slow clients miss frames rather than block the MQTT callback.
type frameHub struct {
	mu   sync.RWMutex
	last WebFrame
	have bool
	subs map[chan WebFrame]struct{}
}

func newFrameHub() *frameHub {
	return &frameHub{subs: make(map[chan WebFrame]struct{})}
}

func (h *frameHub) handlePayload(payload []byte) {
	f, err := telemetry.Decode(string(payload))
	if err != nil {
		log.Debugf("web: %v", err)
		return
	}
	wf := WebFrame{Received: time.Now().UTC(), Frame: f}
	if f.MPUOk {
		pose := orientation.FromSample(f.Ax, f.Ay, f.Az, f.Heading)
		wf.Pose = &pose
	}
	h.publish(wf)
}

func (h *frameHub) publish(wf WebFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last, h.have = wf, true
	for ch := range h.subs {
		select {
		case ch <- wf:
		default:
		}
	}
}

// subscribe registers a client and hands back the current frame, if any,
// under the same lock so nothing published in between is lost.
func (h *frameHub) subscribe() (ch chan WebFrame, last WebFrame, have bool, cancel func()) {
	ch = make(chan WebFrame, 4)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	last, have = h.last, h.have
	h.mu.Unlock()
	return ch, last, have, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

func (h *frameHub) handleLatest(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	wf, have := h.last, h.have
	h.mu.RUnlock()

	if !have {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(wf); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func (h *frameHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch, last, have, cancel := h.subscribe()
	defer cancel()

	// Reading is only needed to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if have {
		if err := conn.WriteJSON(last); err != nil {
			return
		}
	}
	for {
		select {
		case wf := <-ch:
			if err := conn.WriteJSON(wf); err != nil {
				log.Debugf("web: websocket write: %v", err)
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *frameHub) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/telemetry", h.handleLatest)
	mux.HandleFunc("/ws", h.handleWS)
	return mux
}

// RunWeb serves the latest telemetry over HTTP and websocket until ctx is
// cancelled.
func RunWeb(ctx context.Context, cfg *config.Config) error {
	if cfg.MQTTBroker == "" {
		return errNoBroker
	}
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	hub := newFrameHub()
	if err := subscribe(client, cfg.TopicTelemetry, hub.handlePayload); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           hub.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("web: server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
