package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsSubscribePayload struct {
	// Events filters the stream; empty means all map events.
	Events []string `json:"events"`
}

// MapWSHandler handles /v1/map/ws: a small subscribe/next/complete framing
// over WebSocket carrying the same events as the SSE stream, for dashboard
// clients that prefer a bidirectional channel.
func (s *Server) MapWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	type sub struct {
		ch     chan Event
		events map[string]struct{}
	}
	subs := map[string]sub{}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	// gorilla/websocket allows at most one concurrent writer, and writes come
	// from the read loop, the keepalive goroutine, and per-subscription fan-out
	// goroutines. Serialize them all here.
	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for range ticker.C {
					if err := write(wsMessage{Type: "ping"}); err != nil {
						return
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl wsSubscribePayload
			_ = json.Unmarshal(msg.Payload, &pl)
			var filter map[string]struct{}
			if len(pl.Events) > 0 {
				filter = map[string]struct{}{}
				for _, e := range pl.Events {
					filter[e] = struct{}{}
				}
			}
			ch := s.Broker.Subscribe(mapTopic)
			subs[msg.ID] = sub{ch: ch, events: filter}
			go func(id string, c chan Event, filter map[string]struct{}) {
				for evt := range c {
					if filter != nil {
						if _, ok := filter[evt.Type]; !ok {
							continue
						}
					}
					payload, _ := json.Marshal(map[string]any{"type": evt.Type, "data": evt.Data})
					_ = write(wsMessage{Type: "next", ID: id, Payload: payload})
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch, filter)
		case "complete":
			if s0, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(mapTopic, s0.ch)
				delete(subs, msg.ID)
			}
		default:
			// ignore
		}
	}
	for id, s0 := range subs {
		s.Broker.Unsubscribe(mapTopic, s0.ch)
		delete(subs, id)
	}
}
