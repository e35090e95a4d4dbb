package model

// EventType tags a job event pushed over /ws/jobs/:jobId
type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
	EventPing     EventType = "ping"
	EventPong     EventType = "pong"
)

// JobEvent is the single envelope for everything a subscriber receives.
// Progress events carry Percent and Stage, and Stem while a stem is being
// transcribed. Complete events carry the stage Result. Error events carry
// Error.
type JobEvent struct {
	Type    EventType         `json:"type"`
	JobID   string            `json:"jobId,omitempty"`
	Status  JobStatus         `json:"status,omitempty"`
	Percent int               `json:"percent,omitempty"`
	Stage   string            `json:"stage,omitempty"`
	Stem    string            `json:"stem,omitempty"`
	Result  interface{}       `json:"result,omitempty"`
	Error   *EventErrorDetail `json:"error,omitempty"`
}

// EventErrorDetail describes a failed stage
type EventErrorDetail struct {
	Code    string `json:"code"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}
