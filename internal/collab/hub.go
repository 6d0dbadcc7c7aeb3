package collab

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/metrics"
	"github.com/reforesta/planner/backend-go/internal/typeid"
)

// DocumentLoader fetches the latest document of a project.
type DocumentLoader func(ctx context.Context, projectID string) (*document.ProjectData, error)

// DocumentSaver persists a project document.
type DocumentSaver func(ctx context.Context, projectID string, doc *document.ProjectData) error

const defaultAutosave = 5 * time.Second

// ErrSkipSave is returned by a DocumentSaver for projects that are never
// persisted. The document then counts as saved.
var ErrSkipSave = errors.New("document not persisted")

type Config struct {
	Load DocumentLoader
	Save DocumentSaver
	// AutosaveInterval is how often dirty documents are saved.
	AutosaveInterval time.Duration
	Logger           *slog.Logger
}

type Room struct {
	projectID string
	clients   map[string]*Client // clientID -> client
	presence  *PresenceManager
	doc       *DocumentState
}

func NewRoom(projectID string, doc *DocumentState) *Room {
	return &Room{
		projectID: projectID,
		clients:   make(map[string]*Client),
		presence:  NewPresenceManager(),
		doc:       doc,
	}
}

// Hub owns the rooms. Joins, leaves and saves run on the Run goroutine;
// messages are handled on each client's read goroutine.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room // projectID -> room

	load     DocumentLoader
	save     DocumentSaver
	autosave time.Duration
	log      *slog.Logger

	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
}

func NewHub(cfg Config) *Hub {
	h := &Hub{
		rooms:      make(map[string]*Room),
		load:       cfg.Load,
		save:       cfg.Save,
		autosave:   cfg.AutosaveInterval,
		log:        cfg.Logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if h.autosave <= 0 {
		h.autosave = defaultAutosave
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	return h
}

func (h *Hub) Run() {
	defer close(h.done)
	ticker := time.NewTicker(h.autosave)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ticker.C:
			h.saveDirty()
		case <-h.stop:
			h.saveDirty()
			h.closeAll()
			return
		}
	}
}

// Stop saves every dirty document, disconnects all clients and waits for
// Run to return.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.RLock()
	room, ok := h.rooms[client.ProjectID]
	h.mu.RUnlock()

	if !ok {
		doc, err := h.load(context.Background(), client.ProjectID)
		if err != nil {
			h.log.Error("load document", "error", err, "project", client.ProjectID)
			client.Send(newMessage(TypeError, ErrorPayload{Message: "could not load project"}))
			client.close()
			return
		}
		room = NewRoom(client.ProjectID, NewDocumentState(doc))
		h.mu.Lock()
		h.rooms[client.ProjectID] = room
		h.mu.Unlock()
		metrics.CollabRooms.Inc()
	}

	h.mu.Lock()
	room.clients[client.ClientID] = client
	h.mu.Unlock()
	metrics.CollabClients.Inc()

	doc, seq := room.doc.Document()
	client.Send(newMessage(TypeWelcome, WelcomePayload{
		ClientID:  client.ClientID,
		UserID:    client.UserID,
		ServerSeq: seq,
	}))
	client.Send(newMessage(TypeDocSync, DocSyncPayload{Document: doc, ServerSeq: seq}))
	client.Send(room.presence.StateMessage())

	join := newMessage(TypePresenceJoin, PresenceJoinPayload{
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	join.UserID = client.UserID
	join.ClientID = client.ClientID
	h.broadcastToRoom(client.ProjectID, join, client.ClientID)

	h.log.Info("client joined", "user", client.UserID, "project", client.ProjectID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.ProjectID]
	if !ok || room.clients[client.ClientID] != client {
		h.mu.Unlock()
		return
	}
	delete(room.clients, client.ClientID)
	empty := len(room.clients) == 0
	h.mu.Unlock()

	client.close()
	room.presence.Remove(client.ClientID)
	metrics.CollabClients.Dec()

	if empty {
		h.saveRoom(room)
		h.evictIdle(room)
	} else {
		leave := newMessage(TypePresenceLeave, PresenceLeavePayload{UserID: client.UserID})
		leave.UserID = client.UserID
		leave.ClientID = client.ClientID
		h.broadcastToRoom(client.ProjectID, leave, "")
	}

	h.log.Info("client left", "user", client.UserID, "project", client.ProjectID)
}

// evictIdle drops a room with no clients once its document is saved. A
// room whose save failed stays until an autosave tick gets it through.
func (h *Hub) evictIdle(room *Room) {
	if room.doc.Dirty() && h.save != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(room.clients) > 0 || h.rooms[room.projectID] != room {
		return
	}
	delete(h.rooms, room.projectID)
	metrics.CollabRooms.Dec()
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	room := h.room(sender.ProjectID)
	if room == nil {
		return
	}

	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(room, sender, msg)
	case TypeOpSubmit:
		h.handleOpSubmit(room, sender, msg)
	case TypeDocSync:
		doc, seq := room.doc.Document()
		sender.Send(newMessage(TypeDocSync, DocSyncPayload{Document: doc, ServerSeq: seq}))
	default:
		h.log.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
		sender.Send(newMessage(TypeError, ErrorPayload{Message: "unknown message type: " + msg.Type}))
	}
}

func (h *Hub) handlePresenceUpdate(room *Room, sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		h.log.Warn("invalid presence payload", "error", err)
		return
	}
	presence.DisplayName = sender.DisplayName
	room.presence.Update(sender.ClientID, &presence)

	out := newMessage(TypePresenceUpdate, presence)
	out.UserID = sender.UserID
	out.ClientID = sender.ClientID
	h.broadcastToRoom(sender.ProjectID, out, sender.ClientID)
}

func (h *Hub) handleOpSubmit(room *Room, sender *Client, msg *Message) {
	var submit OperationSubmitPayload
	if err := json.Unmarshal(msg.Payload, &submit); err != nil {
		sender.Send(newMessage(TypeOpNack, OperationNackPayload{Reason: "invalid operation payload"}))
		return
	}
	op := submit.Operation
	if op.ID == "" {
		op.ID = typeid.NewOpID()
	}

	seq, err := room.doc.Apply(op)
	if err != nil {
		metrics.CollabOpsTotal.WithLabelValues(op.Type, "rejected").Inc()
		h.log.Debug("operation rejected", "op", op.Type, "error", err, "user", sender.UserID)
		sender.Send(newMessage(TypeOpNack, OperationNackPayload{OperationID: op.ID, Reason: err.Error()}))
		return
	}
	metrics.CollabOpsTotal.WithLabelValues(op.Type, "applied").Inc()

	sender.Send(newMessage(TypeOpAck, OperationAckPayload{
		OperationID:     op.ID,
		ServerSeq:       seq,
		ServerTimestamp: ServerTimestamp(),
	}))

	out := newMessage(TypeOpBroadcast, OperationBroadcastPayload{
		Operation: op,
		UserID:    sender.UserID,
		ServerSeq: seq,
	})
	out.Seq = seq
	h.broadcastToRoom(sender.ProjectID, out, sender.ClientID)
}

func (h *Hub) room(projectID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[projectID]
}

func (h *Hub) broadcastToRoom(projectID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[projectID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	frame, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("encode broadcast", "error", err, "type", msg.Type)
		return
	}
	for _, c := range clients {
		c.enqueue(frame)
	}
}

func (h *Hub) saveDirty() {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	for _, r := range rooms {
		h.saveRoom(r)
		h.evictIdle(r)
	}
}

func (h *Hub) saveRoom(room *Room) {
	if !room.doc.Dirty() || h.save == nil {
		return
	}
	doc, seq := room.doc.Document()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := h.save(ctx, room.projectID, doc)
	if errors.Is(err, ErrSkipSave) {
		room.doc.MarkSaved(seq)
		return
	}
	if err != nil {
		metrics.SnapshotSavesTotal.WithLabelValues("error").Inc()
		h.log.Error("save document", "error", err, "project", room.projectID)
		return
	}
	room.doc.MarkSaved(seq)
	metrics.SnapshotSavesTotal.WithLabelValues("ok").Inc()
	h.log.Debug("document saved", "project", room.projectID, "seq", seq)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	var clients []*Client
	for id, r := range h.rooms {
		for _, c := range r.clients {
			clients = append(clients, c)
		}
		delete(h.rooms, id)
		metrics.CollabRooms.Dec()
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
		metrics.CollabClients.Dec()
	}
}
