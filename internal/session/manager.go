// Package session implements the Session Manager (C7): the conversational
// workflow state machine of §4.7, an idle-TTL eviction sweep, and the
// query-refinement merge that folds confirmed variables into a session's
// next search.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"audiencelens/internal/config"
	"audiencelens/internal/errs"
	"audiencelens/internal/logging"
	"audiencelens/internal/models"
)

// transitions enumerates the legal (from, event) -> to edges of the session
// workflow. An event not present here for the session's current state is an
// InvalidSessionState error.
var transitions = map[models.SessionState]map[string]models.SessionState{
	models.StateAwaitingDataType: {
		"select_data_type": models.StateAwaitingQuery,
	},
	models.StateAwaitingQuery: {
		"submit_query": models.StateCandidatesPresented,
	},
	models.StateCandidatesPresented: {
		"confirm_variables": models.StateVariablesConfirmed,
		"submit_query":       models.StateCandidatesPresented, // refine: re-search in place
	},
	models.StateVariablesConfirmed: {
		"compute_segments":  models.StateSegmentsComputed,
		"confirm_variables": models.StateVariablesConfirmed, // add more confirmed variables
		"submit_query":      models.StateCandidatesPresented, // refine after confirming, preserving ConfirmedVariables
	},
	models.StateSegmentsComputed: {
		"request_distribution": models.StateDistributionReady,
	},
	models.StateDistributionReady: {
		"finish": models.StateTerminal,
	},
}

// cancelable lists the states from which "cancel" is legal: every
// non-Terminal state, per §4.7's "(any non-Terminal) cancel -> Terminal".
var cancelable = map[models.SessionState]bool{
	models.StateAwaitingDataType:    true,
	models.StateAwaitingQuery:       true,
	models.StateCandidatesPresented: true,
	models.StateVariablesConfirmed:  true,
	models.StateSegmentsComputed:    true,
	models.StateDistributionReady:   true,
}

// entry wraps a Session with its own mutex, so concurrent requests against
// different sessions never contend, matching the catalog/keyword packages'
// per-resource locking discipline rather than one manager-wide lock.
type entry struct {
	mu      sync.Mutex
	session *models.Session
}

// Manager owns the live session set and evicts idle sessions past cfg.TTL.
type Manager struct {
	cfg config.SessionConfig

	mu       sync.RWMutex
	sessions map[string]*entry

	stopOnce sync.Once
	stop     chan struct{}
}

// New constructs a Manager and starts its background eviction sweep.
func New(cfg config.SessionConfig) *Manager {
	m := &Manager{
		cfg:      cfg,
		sessions: make(map[string]*entry),
		stop:     make(chan struct{}),
	}
	go m.evictLoop()
	return m
}

// Close stops the eviction sweep. Safe to call multiple times.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) ttl() time.Duration {
	if m.cfg.TTL <= 0 {
		return 30 * time.Minute
	}
	return m.cfg.TTL
}

func (m *Manager) evictLoop() {
	interval := m.ttl() / 4
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *Manager) evictExpired() {
	deadline := time.Now().Add(-m.ttl())
	var expired []string

	m.mu.RLock()
	for id, e := range m.sessions {
		e.mu.Lock()
		if e.session.LastTouchedAt.Before(deadline) {
			expired = append(expired, id)
		}
		e.mu.Unlock()
	}
	m.mu.RUnlock()

	if len(expired) == 0 {
		return
	}
	m.mu.Lock()
	for _, id := range expired {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	logging.SessionDebug("evicted %d idle sessions (ttl=%v)", len(expired), m.ttl())
}

// Create starts a new session in AwaitingDataType for userID.
func (m *Manager) Create(userID string) *models.Session {
	now := time.Now()
	s := &models.Session{
		ID:            uuid.NewString(),
		UserID:        userID,
		CreatedAt:     now,
		LastTouchedAt: now,
		State:         models.StateAwaitingDataType,
	}
	m.mu.Lock()
	m.sessions[s.ID] = &entry{session: s}
	m.mu.Unlock()

	logging.Session("created session %s for user %q", s.ID, userID)
	return s
}

// Get returns a copy of the session for id, or an error of kind
// errs.KindNotFound.
func (m *Manager) Get(id string) (*models.Session, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errs.Wrap(errs.KindNotFound, fmt.Sprintf("session %s not found", id), nil)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := *e.session
	return &cp, nil
}

// Transition applies event to session id's state machine. It returns
// InvalidSessionState if the event is not legal from the session's current
// state.
func (m *Manager) Transition(id, event string) (*models.Session, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errs.Wrap(errs.KindNotFound, fmt.Sprintf("session %s not found", id), nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if event == "cancel" {
		if e.session.State == models.StateTerminal || !cancelable[e.session.State] {
			return nil, errs.New(errs.KindInvalidSessionState,
				fmt.Sprintf("cannot cancel from state %s", e.session.State))
		}
		return m.applyTransition(e, id, "cancel", models.StateTerminal), nil
	}

	edges, ok := transitions[e.session.State]
	if !ok {
		return nil, errs.New(errs.KindInvalidSessionState, fmt.Sprintf("no transitions defined from state %s", e.session.State))
	}
	next, ok := edges[event]
	if !ok {
		return nil, errs.New(errs.KindInvalidSessionState,
			fmt.Sprintf("event %q is not valid from state %s", event, e.session.State))
	}

	return m.applyTransition(e, id, event, next), nil
}

// applyTransition mutates e.session's state, timestamp and history in
// place. Caller must hold e.mu.
func (m *Manager) applyTransition(e *entry, id, event string, next models.SessionState) *models.Session {
	from := e.session.State
	e.session.State = next
	e.session.LastTouchedAt = time.Now()
	e.session.History = append(e.session.History, models.HistoryEntry{
		Event:     event,
		From:      from,
		To:        next,
		Timestamp: e.session.LastTouchedAt,
	})

	logging.SessionDebug("session %s: %s -> %s (event=%s)", id, from, next, event)
	cp := *e.session
	return &cp
}

// Cancel transitions a session to Terminal from any non-Terminal state.
// The session stays in the manager until the idle-TTL sweep evicts it.
func (m *Manager) Cancel(id string) (*models.Session, error) {
	return m.Transition(id, "cancel")
}

// SetDataType records the session's data-type selection and advances it to
// AwaitingQuery.
func (m *Manager) SetDataType(id string, sel models.DataTypeSelection) (*models.Session, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errs.Wrap(errs.KindNotFound, fmt.Sprintf("session %s not found", id), nil)
	}

	e.mu.Lock()
	e.session.DataType = &sel
	e.mu.Unlock()

	return m.Transition(id, "select_data_type")
}

// RefineQuery merges newQuery with a session's previously confirmed
// variables, then re-enters the candidates-presented
// state. The merged query text is returned for the caller to re-run through
// the search pipeline.
func (m *Manager) RefineQuery(ctx context.Context, id, newQuery string) (*models.Session, string, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, "", errs.Wrap(errs.KindNotFound, fmt.Sprintf("session %s not found", id), nil)
	}

	e.mu.Lock()
	switch e.session.State {
	case models.StateAwaitingQuery, models.StateCandidatesPresented, models.StateVariablesConfirmed:
		// refine is legal from here; StateVariablesConfirmed covers refining
		// after variables have already been confirmed (§4.7 requires
		// ConfirmedVariables to survive the refine).
	default:
		state := e.session.State
		e.mu.Unlock()
		return nil, "", errs.New(errs.KindInvalidSessionState,
			fmt.Sprintf("cannot refine query from state %s", state))
	}
	e.session.LastQuery = newQuery
	merged := mergeQuery(newQuery, e.session.ConfirmedVariables)
	e.mu.Unlock()

	s, err := m.Transition(id, "submit_query")
	return s, merged, err
}

// StoreCandidates records the codes of the current result page, called
// after submitQuery/refineQuery successfully runs the retrieval pipeline.
// It does not itself transition the state machine.
func (m *Manager) StoreCandidates(id string, codes []string) error {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return errs.Wrap(errs.KindNotFound, fmt.Sprintf("session %s not found", id), nil)
	}
	e.mu.Lock()
	e.session.CandidateCodes = codes
	e.mu.Unlock()
	return nil
}

// ConfirmVariables validates that codes is a subset of the session's last
// candidate set union its already-confirmed variables (§4.7), appends the
// new ones (de-duped), and advances the state machine.
func (m *Manager) ConfirmVariables(id string, codes []string) (*models.Session, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errs.Wrap(errs.KindNotFound, fmt.Sprintf("session %s not found", id), nil)
	}

	e.mu.Lock()
	if _, ok := transitions[e.session.State]["confirm_variables"]; !ok {
		state := e.session.State
		e.mu.Unlock()
		return nil, errs.New(errs.KindInvalidSessionState,
			fmt.Sprintf("event %q is not valid from state %s", "confirm_variables", state))
	}
	allowed := make(map[string]bool, len(e.session.CandidateCodes)+len(e.session.ConfirmedVariables))
	for _, c := range e.session.CandidateCodes {
		allowed[c] = true
	}
	for _, c := range e.session.ConfirmedVariables {
		allowed[c] = true
	}
	for _, c := range codes {
		if !allowed[c] {
			e.mu.Unlock()
			return nil, errs.New(errs.KindInvalidQuery,
				fmt.Sprintf("variable %q is not among the session's last candidates or prior confirmations", c))
		}
	}

	seen := make(map[string]bool, len(e.session.ConfirmedVariables))
	for _, c := range e.session.ConfirmedVariables {
		seen[c] = true
	}
	for _, c := range codes {
		if !seen[c] {
			seen[c] = true
			e.session.ConfirmedVariables = append(e.session.ConfirmedVariables, c)
		}
	}
	e.mu.Unlock()

	return m.Transition(id, "confirm_variables")
}

// ComputeSegments runs clusterer over the session's confirmed variables,
// stores the resulting segments, and advances the state machine to
// SegmentsComputed. A clustering failure leaves the session on its prior
// state, per §7's "session state is mutated only after retrieval succeeds."
func (m *Manager) ComputeSegments(ctx context.Context, id string, run func(ctx context.Context, confirmed []string) ([]models.Segment, error)) (*models.Session, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errs.Wrap(errs.KindNotFound, fmt.Sprintf("session %s not found", id), nil)
	}

	e.mu.Lock()
	if e.session.State != models.StateVariablesConfirmed {
		state := e.session.State
		e.mu.Unlock()
		return nil, errs.New(errs.KindInvalidSessionState,
			fmt.Sprintf("cannot compute segments from state %s", state))
	}
	confirmed := append([]string(nil), e.session.ConfirmedVariables...)
	e.mu.Unlock()

	segments, err := run(ctx, confirmed)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.session.Segments = segments
	e.mu.Unlock()

	return m.Transition(id, "compute_segments")
}

// AcceptSegments freezes the session's segments and advances it to
// DistributionReady. Once in this state (and from SegmentsComputed onward),
// ConfirmedVariables never changes again (§8 invariant 6).
func (m *Manager) AcceptSegments(id string) (*models.Session, error) {
	return m.Transition(id, "request_distribution")
}

// mergeQuery folds previously confirmed variable codes into newQuery as
// additional search context, so a refinement narrows rather than replaces
// the user's prior selections.
func mergeQuery(newQuery string, confirmed []string) string {
	if len(confirmed) == 0 {
		return newQuery
	}
	merged := newQuery
	for _, code := range confirmed {
		merged += " " + code
	}
	return merged
}

// Count returns the number of live (non-evicted) sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
