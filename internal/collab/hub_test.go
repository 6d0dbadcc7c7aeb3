package collab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reforesta/planner/backend-go/internal/document"
)

type savedDocs struct {
	mu    sync.Mutex
	docs  map[string]*document.ProjectData
	saved chan string
}

func newHub(t *testing.T, interval time.Duration) (*Hub, *savedDocs) {
	t.Helper()
	saved := &savedDocs{docs: make(map[string]*document.ProjectData), saved: make(chan string, 16)}
	h := NewHub(Config{
		Load: func(ctx context.Context, projectID string) (*document.ProjectData, error) {
			if projectID == "proj_missing" {
				return nil, errors.New("no such project")
			}
			return document.NewEmptyProject("P"), nil
		},
		Save: func(ctx context.Context, projectID string, doc *document.ProjectData) error {
			saved.mu.Lock()
			saved.docs[projectID] = doc
			saved.mu.Unlock()
			saved.saved <- projectID
			return nil
		},
		AutosaveInterval: interval,
	})
	go h.Run()
	t.Cleanup(h.Stop)
	return h, saved
}

// recv waits for the next queued message of a client without a connection.
func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
	}
	return Message{}
}

func join(t *testing.T, h *Hub, userID, clientID string) *Client {
	t.Helper()
	c := NewClient(h, nil, Identity{UserID: userID, DisplayName: "Name " + userID}, "proj_1", clientID)
	h.Register(c)
	assert.Equal(t, TypeWelcome, recv(t, c).Type)
	assert.Equal(t, TypeDocSync, recv(t, c).Type)
	assert.Equal(t, TypePresenceState, recv(t, c).Type)
	return c
}

func submit(t *testing.T, h *Hub, c *Client, op Operation) {
	t.Helper()
	raw, err := json.Marshal(OperationSubmitPayload{Operation: op})
	require.NoError(t, err)
	h.handleMessage(c, &Message{Type: TypeOpSubmit, Payload: raw})
}

func TestHubOperationFlow(t *testing.T) {
	h, saved := newHub(t, time.Hour)
	alice := join(t, h, "user_a", "c1")
	bob := join(t, h, "user_b", "c2")

	msg := recv(t, alice)
	assert.Equal(t, TypePresenceJoin, msg.Type)
	assert.Equal(t, "user_b", msg.UserID)

	submit(t, h, alice, Operation{ID: "op_1", Type: OpTreeAdd, Entity: json.RawMessage(treeJSON)})

	ack := recv(t, alice)
	require.Equal(t, TypeOpAck, ack.Type)
	var ackPayload OperationAckPayload
	require.NoError(t, json.Unmarshal(ack.Payload, &ackPayload))
	assert.Equal(t, "op_1", ackPayload.OperationID)
	assert.Equal(t, int64(1), ackPayload.ServerSeq)

	bc := recv(t, bob)
	require.Equal(t, TypeOpBroadcast, bc.Type)
	var bcPayload OperationBroadcastPayload
	require.NoError(t, json.Unmarshal(bc.Payload, &bcPayload))
	assert.Equal(t, "user_a", bcPayload.UserID)
	assert.Equal(t, OpTreeAdd, bcPayload.Operation.Type)

	submit(t, h, bob, Operation{ID: "op_2", Type: OpTreeDelete, EntityID: "tree_404"})
	nack := recv(t, bob)
	require.Equal(t, TypeOpNack, nack.Type)
	assert.Contains(t, string(nack.Payload), "entity not found")

	h.handleMessage(bob, &Message{Type: TypePresenceUpdate, Payload: json.RawMessage(`{"cursor":{"x":12,"y":34},"selection":{"kind":"tree","id":"tree_1"}}`)})
	pres := recv(t, alice)
	require.Equal(t, TypePresenceUpdate, pres.Type)
	var p PresencePayload
	require.NoError(t, json.Unmarshal(pres.Payload, &p))
	assert.Equal(t, "Name user_b", p.DisplayName)
	assert.Equal(t, 34.0, p.Cursor.Y)
	assert.Equal(t, "tree_1", p.Selection.ID)

	h.handleMessage(bob, &Message{Type: "object.transform"})
	assert.Equal(t, TypeError, recv(t, bob).Type)

	h.Unregister(bob)
	assert.Equal(t, TypePresenceLeave, recv(t, alice).Type)

	// The last client leaving saves the dirty document.
	h.Unregister(alice)
	select {
	case id := <-saved.saved:
		assert.Equal(t, "proj_1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("document not saved")
	}
	saved.mu.Lock()
	assert.Len(t, saved.docs["proj_1"].Trees, 1)
	saved.mu.Unlock()
}

func TestHubAutosave(t *testing.T) {
	h, saved := newHub(t, 20*time.Millisecond)
	c := join(t, h, "user_a", "c1")
	submit(t, h, c, Operation{Type: OpProjectRename, Name: "Renombrado"})
	assert.Equal(t, TypeOpAck, recv(t, c).Type)

	select {
	case <-saved.saved:
	case <-time.After(2 * time.Second):
		t.Fatal("no autosave")
	}
	saved.mu.Lock()
	assert.Equal(t, "Renombrado", saved.docs["proj_1"].Name)
	saved.mu.Unlock()

	// Nothing changed since, so no further saves.
	select {
	case <-saved.saved:
		t.Fatal("clean document saved again")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubRetriesFailedSaveAfterLastLeave(t *testing.T) {
	var (
		mu       sync.Mutex
		failing  = true
		attempts int
		stored   *document.ProjectData
	)
	h := NewHub(Config{
		Load: func(ctx context.Context, projectID string) (*document.ProjectData, error) {
			return document.NewEmptyProject("P"), nil
		},
		Save: func(ctx context.Context, projectID string, doc *document.ProjectData) error {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if failing {
				return errors.New("database unavailable")
			}
			stored = doc
			return nil
		},
		AutosaveInterval: 20 * time.Millisecond,
	})
	go h.Run()
	t.Cleanup(h.Stop)

	c := join(t, h, "user_a", "c1")
	submit(t, h, c, Operation{ID: "op_1", Type: OpTreeAdd, Entity: json.RawMessage(treeJSON)})
	require.Equal(t, TypeOpAck, recv(t, c).Type)
	h.Unregister(c)

	// Save on leave and the following ticks fail; the room must stay.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 3
	}, 2*time.Second, 5*time.Millisecond)
	require.NotNil(t, h.room("proj_1"), "unsaved room kept for retry")

	mu.Lock()
	failing = false
	mu.Unlock()

	assert.Eventually(t, func() bool { return h.room("proj_1") == nil },
		2*time.Second, 10*time.Millisecond, "room dropped once saved")
	mu.Lock()
	require.NotNil(t, stored)
	assert.Len(t, stored.Trees, 1)
	mu.Unlock()
}

func TestHubLoadFailureClosesClient(t *testing.T) {
	h, _ := newHub(t, time.Hour)
	c := NewClient(h, nil, Identity{UserID: "user_a", DisplayName: "A"}, "proj_missing", "c1")
	h.Register(c)
	assert.Equal(t, TypeError, recv(t, c).Type)
	_, ok := <-c.send
	assert.False(t, ok)
}

func TestHubStopSavesDirty(t *testing.T) {
	h, saved := newHub(t, time.Hour)
	c := join(t, h, "user_a", "c1")
	submit(t, h, c, Operation{Type: OpTreeAdd, Entity: json.RawMessage(treeJSON)})
	recv(t, c)

	h.Stop()
	select {
	case <-saved.saved:
	default:
		t.Fatal("Stop did not save")
	}
	for range c.send {
	}
	h.Register(NewClient(h, nil, Identity{UserID: "user_b", DisplayName: "B"}, "proj_1", "c2"))
}

func TestWebsocketSession(t *testing.T) {
	h, _ := newHub(t, time.Hour)
	authorize := func(r *http.Request, projectID string) (Identity, error) {
		if r.URL.Query().Get("token") != "ok" {
			return Identity{}, ErrUnauthorized
		}
		return Identity{UserID: "user_a", DisplayName: "Ana"}, nil
	}
	r := mux.NewRouter()
	r.Handle("/ws/project/{projectId}", NewHandler(h, authorize, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/ws/project/proj_1")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/project/proj_1?token=ok"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() Message {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	welcome := read()
	require.Equal(t, TypeWelcome, welcome.Type)
	var wp WelcomePayload
	require.NoError(t, json.Unmarshal(welcome.Payload, &wp))
	assert.Equal(t, "user_a", wp.UserID)
	assert.NotEmpty(t, wp.ClientID)

	syncMsg := read()
	require.Equal(t, TypeDocSync, syncMsg.Type)
	var dp DocSyncPayload
	require.NoError(t, json.Unmarshal(syncMsg.Payload, &dp))
	assert.Equal(t, "P", dp.Document.Name)
	assert.Equal(t, TypePresenceState, read().Type)

	raw, err := json.Marshal(Message{
		Type:    TypeOpSubmit,
		Payload: json.RawMessage(`{"operation":{"id":"op_1","type":"scale.set","scale":0.1}}`),
	})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, raw))
	assert.Equal(t, TypeOpAck, read().Type)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`not json`)))
	assert.Equal(t, TypeError, read().Type)
}
