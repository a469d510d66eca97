package models

import "time"

// SessionState is a node in the conversational workflow state machine
// (§4.7). Transitions are enforced by internal/session, not by this type.
type SessionState string

const (
	StateAwaitingDataType    SessionState = "AwaitingDataType"
	StateAwaitingQuery       SessionState = "AwaitingQuery"
	StateCandidatesPresented SessionState = "CandidatesPresented"
	StateVariablesConfirmed  SessionState = "VariablesConfirmed"
	StateSegmentsComputed    SessionState = "SegmentsComputed"
	StateDistributionReady   SessionState = "DistributionReady"
	StateTerminal            SessionState = "Terminal"
)

// DataTypeSelection records the first-party/third-party/clean-room choice
// and its sub-source, captured during AwaitingDataType -> AwaitingQuery.
type DataTypeSelection struct {
	Kind      string `json:"kind"` // first-party | third-party | clean-room
	SubSource string `json:"sub_source"`
}

// Segment is the downstream clustering output. Only its shape as an input
// contract to the (out-of-scope) K-Medians clusterer is specified here.
type Segment struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	VariableIDs []string `json:"variable_ids"`
	Size       int      `json:"size"`
}

// HistoryEntry records one state transition for audit/debugging, shaped
// after the logging package's structured log entry convention.
type HistoryEntry struct {
	Event     string       `json:"event"`
	From      SessionState `json:"from"`
	To        SessionState `json:"to"`
	Timestamp time.Time    `json:"timestamp"`
	Warnings  []string     `json:"warnings,omitempty"`
}

// Session is the conversational workflow state for one user. Sessions hold
// only variable codes (never *Variable pointers) so that they are decoupled
// from catalog reloads and rehydrate through whatever snapshot is current
// when a code is needed.
type Session struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	CreatedAt     time.Time    `json:"created_at"`
	LastTouchedAt time.Time    `json:"last_touched_at"`

	State    SessionState        `json:"state"`
	DataType *DataTypeSelection  `json:"data_type,omitempty"`

	LastQuery          string     `json:"last_query"`
	CandidateCodes     []string   `json:"candidate_codes"`
	ConfirmedVariables []string   `json:"confirmed_variables"`
	Segments           []Segment  `json:"segments,omitempty"`
	History            []HistoryEntry `json:"history"`
}
