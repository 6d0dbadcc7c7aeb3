package collab

import (
	"encoding/json"

	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/geometry"
)

type Message struct {
	Type      string          `json:"type"`
	ProjectID string          `json:"projectId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	TypeWelcome = "welcome"
	// TypeDocSync carries the whole document. Clients send it with an
	// empty payload to ask for a resync.
	TypeDocSync = "doc.sync"

	TypeOpSubmit    = "op.submit"
	TypeOpAck       = "op.ack"
	TypeOpNack      = "op.nack"
	TypeOpBroadcast = "op.broadcast"
)

// EntityRef names the entity a user has selected.
type EntityRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// PresencePayload is what a user shares about their view of the project.
// The cursor is in world (image pixel) coordinates so it lines up for
// every viewer whatever their zoom.
type PresencePayload struct {
	Cursor      *geometry.Point `json:"cursor,omitempty"`
	Selection   *EntityRef      `json:"selection,omitempty"`
	Mode        string          `json:"mode,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID string `json:"userId"`
}

type WelcomePayload struct {
	ClientID  string `json:"clientId"`
	UserID    string `json:"userId"`
	ServerSeq int64  `json:"serverSeq"`
}

type DocSyncPayload struct {
	Document  *document.ProjectData `json:"document"`
	ServerSeq int64                 `json:"serverSeq"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Operation types.
const (
	OpTreeAdd         = "tree.add"
	OpTreeDelete      = "tree.delete"
	OpTreeMove        = "tree.move"
	OpPipelineAdd     = "pipeline.add"
	OpPipelineDelete  = "pipeline.delete"
	OpPipelineMove    = "pipeline.move"
	OpGuidelineAdd    = "guideline.add"
	OpGuidelinesClear = "guidelines.clear"
	OpPolygonSet      = "polygon.set"
	OpScaleSet        = "scale.set"
	OpProjectRename   = "project.rename"
)

// Operation is one content edit. Which fields are used depends on Type.
type Operation struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	ClientSeq int64  `json:"clientSeq"`

	// EntityID names the tree or pipeline for delete and move.
	EntityID string `json:"entityId,omitempty"`
	// Entity is the tree, pipeline or guideline to add, in project file form.
	Entity json.RawMessage `json:"entity,omitempty"`

	// Position is where tree.move puts the tree.
	Position *geometry.Point `json:"position,omitempty"`
	// Delta is the translation applied by pipeline.move.
	Delta *geometry.Point `json:"delta,omitempty"`

	Points []geometry.Point `json:"points,omitempty"`
	// Scale is the meters per pixel for scale.set; null clears it.
	Scale *float64 `json:"scale,omitempty"`
	Name  string   `json:"name,omitempty"`
}

type OperationSubmitPayload struct {
	Operation Operation `json:"operation"`
}

type OperationAckPayload struct {
	OperationID     string `json:"operationId"`
	ServerSeq       int64  `json:"serverSeq"`
	ServerTimestamp int64  `json:"serverTimestamp"`
}

type OperationNackPayload struct {
	OperationID string `json:"operationId"`
	Reason      string `json:"reason"`
}

type OperationBroadcastPayload struct {
	Operation Operation `json:"operation"`
	UserID    string    `json:"userId"`
	ServerSeq int64     `json:"serverSeq"`
}

// newMessage marshals payload into a message of the given type.
func newMessage(typ string, payload any) *Message {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = json.RawMessage(`null`)
	}
	return &Message{Type: typ, Payload: raw}
}
