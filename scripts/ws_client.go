// Package main runs a demo WebSocket client: it seeds a depot and an
// optimization result, then streams map events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	post := func(path string, body []byte) *http.Response {
		req, _ := http.NewRequest(http.MethodPost, base+path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Role", "admin")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Fatal(err)
		}
		return resp
	}

	// Seed a depot
	resp := post("/v1/depots", []byte(`{"name":"Depot Nord","lat":36.8065,"lng":10.1815,"capacityMax":120}`))
	var depot struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&depot)
	_ = resp.Body.Close()
	log.Printf("depot: %s (%s)", depot.Name, depot.ID)

	// Connect WS before posting the result so resolution events are captured
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/map/ws"}
	hdr := http.Header{}
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	_ = c.WriteJSON(wsMessage{Type: "connection_init"})
	_ = c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: []byte(`{}`)})

	// Ingest a small optimization result
	result := []byte(`{
		"depotUtilise": "Depot Nord",
		"itineraries": [{
			"vehicleInfo": "Truck A",
			"points": [
				{"id": "p1", "lat": 36.81, "lng": 10.19, "type": "plastic", "status": "reported"},
				{"id": "p2", "lat": 36.82, "lng": 10.17, "type": "glass", "status": "reported"}
			]
		}]
	}`)
	resp = post("/v1/optimizations", result)
	_ = resp.Body.Close()
	log.Printf("optimization posted: %s", resp.Status)

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		var msg wsMessage
		_ = c.SetReadDeadline(deadline)
		if err := c.ReadJSON(&msg); err != nil {
			log.Printf("read: %v", err)
			return
		}
		log.Printf("<- %s %s", msg.Type, string(msg.Payload))
	}
}
