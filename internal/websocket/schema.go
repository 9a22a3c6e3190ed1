package websocket

import "github.com/examroom/examroom-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AutosaveRequest is sent by the client to replace the saved answer map.
type AutosaveRequest struct {
	Action  Action          `json:"action"`
	Answers model.AnswerMap `json:"answers"`
}

// SubmitRequest is sent by the client to finish and grade the attempt.
// Answers, when present, win over the autosaved set.
type SubmitRequest struct {
	Action  Action          `json:"action"`
	Answers model.AnswerMap `json:"answers"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventSaved  Event = "saved"
	EventGraded Event = "graded"
	EventPong   Event = "pong"
)

type SavedResponse struct {
	Event Event `json:"event"`
}

type GradedResponse struct {
	Event  Event               `json:"event"`
	Result *model.SubmitResult `json:"result"`
}

// PongResponse answers a ping with the server-clock view of the session, so
// the client can resynchronize its countdown.
type PongResponse struct {
	Event     Event                 `json:"event"`
	Heartbeat *model.HeartbeatState `json:"heartbeat"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
