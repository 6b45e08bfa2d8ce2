// Package main runs a demo WebSocket client for problem solve events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const demoProblem = `{
  "name": "ws demo",
  "vehicles": [{"id": "v1", "start_index": 0, "capacity": 10}, {"id": "v2", "start_index": 0, "capacity": 10}],
  "jobs": [
    {"id": "a", "location_index": 1, "delivery": 4},
    {"id": "b", "location_index": 2, "delivery": 4},
    {"id": "c", "location_index": 3, "delivery": 4}
  ],
  "matrix": [[0,4,7,9],[4,0,3,6],[7,3,0,2],[9,6,2,0]]
}`

func post(base, path, body string) (*http.Response, error) {
	req, _ := http.NewRequest(http.MethodPost, base+path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "planner")
	return http.DefaultClient.Do(req)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	resp, err := post(base, "/v1/problems", demoProblem)
	if err != nil {
		log.Fatal(err)
	}
	var prob struct {
		ID string `json:"id"`
	}
	err = json.NewDecoder(resp.Body).Decode(&prob)
	_ = resp.Body.Close()
	if err != nil || prob.ID == "" {
		log.Fatalf("create problem failed (status %d): %v", resp.StatusCode, err)
	}
	log.Infof("Problem ID: %s", prob.ID)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	pl, _ := json.Marshal(map[string]string{"problemId": prob.ID})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Infof("read: %v", err)
				return
			}
			log.Infof("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Trigger solve events
	time.Sleep(500 * time.Millisecond)
	for _, algo := range []string{"greedy", "exact"} {
		r, err := post(base, "/v1/problems/"+prob.ID+"/solve?algorithm="+algo, "")
		if err != nil {
			log.Fatal(err)
		}
		_ = r.Body.Close()
	}

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
