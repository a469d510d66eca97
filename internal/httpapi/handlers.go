package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"audiencelens/internal/errs"
	"audiencelens/internal/facade"
	"audiencelens/internal/models"
)

// logRequests is a zap-backed request logger, installed ahead of CORS and
// routing so every request gets a request ID, status, and duration logged.
func (rt *Router) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		rt.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates an errs.Kind into the HTTP status §7 assigns it.
func writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case errs.KindInvalidQuery:
		status = http.StatusBadRequest
	case errs.KindInvalidSessionState:
		status = http.StatusConflict
	case errs.KindNotFound:
		status = http.StatusNotFound
	case errs.KindTimeout:
		status = http.StatusGatewayTimeout
	case errs.KindServiceUnavailable:
		status = http.StatusServiceUnavailable
	case errs.KindCatalogLoadError:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorResponseDTO{Error: err.Error(), Kind: string(kind)})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// handleSearch implements POST /api/enhanced-variable-picker/search.
func (rt *Router) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, errs.Wrap(errs.KindInvalidQuery, "malformed request body", err))
		return
	}
	if err := rt.validate.Struct(req); err != nil {
		writeError(w, errs.Wrap(errs.KindInvalidQuery, err.Error(), nil))
		return
	}

	resp, err := rt.svc.Search(r.Context(), req.toServiceRequest())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSearchResponseDTO(resp))
}

// handleRefine implements POST /api/variable-picker/refine.
func (rt *Router) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req searchRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, errs.Wrap(errs.KindInvalidQuery, "malformed request body", err))
		return
	}
	if req.SessionID == "" {
		writeError(w, errs.New(errs.KindInvalidQuery, "session_id is required"))
		return
	}
	keepSelected := true
	if req.KeepSelected != nil {
		keepSelected = *req.KeepSelected
	}

	resp, err := rt.svc.Refine(r.Context(), req.SessionID, req.toServiceRequest(), keepSelected)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSearchResponseDTO(resp))
}

// handleGetVariable implements GET /api/enhanced-variable-picker/variable/{code}.
func (rt *Router) handleGetVariable(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	v, err := rt.svc.GetVariable(code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleByCategory implements GET /api/enhanced-variable-picker/category/{category}?top_k=N.
func (rt *Router) handleByCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	topK := facade.TopKUnspecified
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			topK = v
		}
	}

	resp, err := rt.svc.ByCategory(category, topK)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSearchResponseDTO(resp))
}

// handleStats implements GET /api/enhanced-variable-picker/stats.
func (rt *Router) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.svc.Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleStartSession implements POST /api/start_session.
func (rt *Router) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, errs.Wrap(errs.KindInvalidQuery, "malformed request body", err))
		return
	}
	if err := rt.validate.Struct(req); err != nil {
		writeError(w, errs.Wrap(errs.KindInvalidQuery, err.Error(), nil))
		return
	}

	s := rt.svc.Sessions().Create(req.UserID)
	writeJSON(w, http.StatusOK, s)
}

// handleSessionAction implements POST /api/nl/process: a single envelope
// dispatching on action, matching §6's {session_id, action, payload} body.
func (rt *Router) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	var req sessionActionRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, errs.Wrap(errs.KindInvalidQuery, "malformed request body", err))
		return
	}
	if err := rt.validate.Struct(req); err != nil {
		writeError(w, errs.Wrap(errs.KindInvalidQuery, err.Error(), nil))
		return
	}

	sessions := rt.svc.Sessions()
	var (
		s   *models.Session
		err error
	)

	switch req.Action {
	case "select_data_type":
		var p dataTypePayload
		decodePayload(req.Payload, &p)
		s, err = sessions.SetDataType(req.SessionID, models.DataTypeSelection{Kind: p.Kind, SubSource: p.SubSource})

	case "submit_query", "refine_query":
		var p queryPayload
		decodePayload(req.Payload, &p)
		var merged string
		s, merged, err = sessions.RefineQuery(r.Context(), req.SessionID, p.Query)
		if err == nil {
			searchResp, searchErr := rt.svc.Search(r.Context(), searchRequestDTO{Query: merged, UserID: s.UserID}.toServiceRequest())
			if searchErr == nil {
				codes := make([]string, 0, len(searchResp.Results))
				for _, c := range searchResp.Results {
					codes = append(codes, c.Code)
				}
				_ = sessions.StoreCandidates(req.SessionID, codes)
				writeJSON(w, http.StatusOK, map[string]interface{}{"session": s, "search": newSearchResponseDTO(searchResp)})
				return
			}
		}

	case "confirm_variables":
		var p confirmVariablesPayload
		decodePayload(req.Payload, &p)
		s, err = sessions.ConfirmVariables(req.SessionID, p.Codes)

	case "compute_segments":
		s, err = rt.svc.ComputeSegments(r.Context(), req.SessionID)

	case "accept_segments":
		s, err = sessions.AcceptSegments(req.SessionID)

	case "cancel":
		s, err = sessions.Cancel(req.SessionID)

	default:
		err = errs.New(errs.KindInvalidQuery, "unknown action "+req.Action)
	}

	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func decodePayload(payload map[string]interface{}, dst interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, dst)
}

// handleMigrationStatus implements GET /api/search/migration/status.
func (rt *Router) handleMigrationStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.svc.Router().Status())
}

// handleMigrationTest implements POST /api/search/migration/test: a
// dry-run routing decision for a given user_id, per §4.8/§8's router
// determinism invariant.
func (rt *Router) handleMigrationTest(w http.ResponseWriter, r *http.Request) {
	var req migrationTestRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, errs.Wrap(errs.KindInvalidQuery, "malformed request body", err))
		return
	}
	if err := rt.validate.Struct(req); err != nil {
		writeError(w, errs.Wrap(errs.KindInvalidQuery, err.Error(), nil))
		return
	}
	writeJSON(w, http.StatusOK, rt.svc.Router().Route(req.UserID))
}
