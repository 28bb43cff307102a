package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

// CapturedEvent is a room event the service sent to the homeserver
type CapturedEvent struct {
	Room    string
	EventID string
	Kind    string // send, edit, react or redact
	Body    string // for edits, the body of m.new_content
	Key     string // reaction key
	Target  string // event an edit, reaction or redaction refers to
}

// Label is the form used in scenario expectations
func (e CapturedEvent) Label() string {
	if e.Kind == "react" {
		return "react " + e.Key
	}
	return e.Kind
}

// MockHomeserver implements the client-server API endpoints the service
// uses and records what it sends
type MockHomeserver struct {
	server *httptest.Server
	userID string

	mu     sync.Mutex
	joined map[string]bool
	events []CapturedEvent
	nextID int
}

// NewMockHomeserver starts a homeserver where userID is joined to rooms
func NewMockHomeserver(userID string, rooms ...string) *MockHomeserver {
	hs := &MockHomeserver{
		userID: userID,
		joined: make(map[string]bool, len(rooms)),
	}
	for _, room := range rooms {
		hs.joined[room] = true
	}
	hs.server = httptest.NewServer(http.HandlerFunc(hs.serve))
	return hs
}

// URL is the homeserver base URL
func (hs *MockHomeserver) URL() string { return hs.server.URL }

// Close stops the server
func (hs *MockHomeserver) Close() { hs.server.Close() }

// Events returns a copy of the captured events
func (hs *MockHomeserver) Events() []CapturedEvent {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return append([]CapturedEvent(nil), hs.events...)
}

// Labels returns the captured events in expectation form
func (hs *MockHomeserver) Labels() []string {
	events := hs.Events()
	labels := make([]string, 0, len(events))
	for _, e := range events {
		labels = append(labels, e.Label())
	}
	return labels
}

// LatestBody is the body of the last message sent or edited
func (hs *MockHomeserver) LatestBody() string {
	events := hs.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == "send" || events[i].Kind == "edit" {
			return events[i].Body
		}
	}
	return ""
}

type messageContent struct {
	Body       string `json:"body"`
	NewContent *struct {
		Body string `json:"body"`
	} `json:"m.new_content"`
	RelatesTo *struct {
		RelType string `json:"rel_type"`
		EventID string `json:"event_id"`
		Key     string `json:"key"`
	} `json:"m.relates_to"`
}

func (hs *MockHomeserver) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"errcode": "M_MISSING_TOKEN", "error": "Missing access token"})
		return
	}

	segments := strings.Split(strings.TrimPrefix(r.URL.EscapedPath(), "/_matrix/client/v3/"), "/")
	for i, s := range segments {
		if unescaped, err := url.PathUnescape(s); err == nil {
			segments[i] = unescaped
		}
	}

	switch {
	case r.Method == http.MethodGet && segments[0] == "account" && len(segments) == 2 && segments[1] == "whoami":
		writeJSON(w, http.StatusOK, map[string]string{"user_id": hs.userID})
	case r.Method == http.MethodGet && segments[0] == "joined_rooms":
		hs.mu.Lock()
		rooms := make([]string, 0, len(hs.joined))
		for room := range hs.joined {
			rooms = append(rooms, room)
		}
		hs.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string][]string{"joined_rooms": rooms})
	case r.Method == http.MethodPost && segments[0] == "join" && len(segments) == 2:
		hs.join(w, segments[1])
	case r.Method == http.MethodPost && segments[0] == "rooms" && len(segments) == 3 && segments[2] == "join":
		hs.join(w, segments[1])
	case r.Method == http.MethodPut && segments[0] == "rooms" && len(segments) == 5 && segments[2] == "send":
		hs.handleSend(w, r, segments[1], segments[3])
	case r.Method == http.MethodPut && segments[0] == "rooms" && len(segments) == 5 && segments[2] == "redact":
		id := hs.record(CapturedEvent{Room: segments[1], Kind: "redact", Target: segments[3]})
		writeJSON(w, http.StatusOK, map[string]string{"event_id": id})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"errcode": "M_UNRECOGNIZED", "error": "Unrecognized request"})
	}
}

func (hs *MockHomeserver) join(w http.ResponseWriter, room string) {
	hs.mu.Lock()
	hs.joined[room] = true
	hs.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"room_id": room})
}

func (hs *MockHomeserver) handleSend(w http.ResponseWriter, r *http.Request, room, eventType string) {
	hs.mu.Lock()
	joined := hs.joined[room]
	hs.mu.Unlock()
	if !joined {
		writeJSON(w, http.StatusForbidden, map[string]string{"errcode": "M_FORBIDDEN", "error": "User not in room"})
		return
	}

	var content messageContent
	if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"errcode": "M_NOT_JSON", "error": err.Error()})
		return
	}

	evt := CapturedEvent{Room: room, Kind: "send", Body: content.Body}
	switch {
	case eventType == "m.reaction" && content.RelatesTo != nil:
		evt.Kind = "react"
		evt.Key = content.RelatesTo.Key
		evt.Target = content.RelatesTo.EventID
		evt.Body = ""
	case content.RelatesTo != nil && content.RelatesTo.RelType == "m.replace":
		evt.Kind = "edit"
		evt.Target = content.RelatesTo.EventID
		if content.NewContent != nil {
			evt.Body = content.NewContent.Body
		}
	}

	id := hs.record(evt)
	writeJSON(w, http.StatusOK, map[string]string{"event_id": id})
}

func (hs *MockHomeserver) record(evt CapturedEvent) string {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.nextID++
	evt.EventID = fmt.Sprintf("$event%d", hs.nextID)
	hs.events = append(hs.events, evt)
	return evt.EventID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
