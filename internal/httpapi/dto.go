// Package httpapi exposes the Retrieval Façade over the contractual HTTP
// paths of §6: go-chi/chi routing, go-chi/cors, go-playground/validator
// request validation, and zap request logging, grounded on
// backend/interfaces/http/rest's router/handler split (router.go wires
// chi + cors + middleware; handlers translate DTOs to/from the façade).
package httpapi

import (
	"audiencelens/internal/facade"
	"audiencelens/internal/models"
	"audiencelens/internal/router"
)

// searchRequestDTO is the wire shape of the search/refine request body
// (§6's "Search request body").
type searchRequestDTO struct {
	Query string `json:"query" validate:"required"`
	// TopK is a pointer so an omitted field (nil) can be told apart from an
	// explicit 0 — the façade clamps the latter to 1 with a warning per §8's
	// boundary behavior, but an omitted top_k should fall back to the
	// configured default instead.
	TopK         *int       `json:"top_k"`
	UseSemantic  bool       `json:"use_semantic"`
	UseKeyword   bool       `json:"use_keyword"`
	Filters      filtersDTO `json:"filters"`
	UserID       string     `json:"user_id"`
	SessionID    string     `json:"session_id"`
	KeepSelected *bool      `json:"keep_selected"`
}

type filtersDTO struct {
	Theme    string `json:"theme"`
	Category string `json:"category"`
}

func (d searchRequestDTO) toServiceRequest() facade.SearchRequest {
	useKeyword := d.UseKeyword
	useSemantic := d.UseSemantic
	if !useKeyword && !useSemantic {
		useKeyword, useSemantic = true, true
	}
	topK := facade.TopKUnspecified
	if d.TopK != nil {
		topK = *d.TopK
	}
	return facade.SearchRequest{
		Query:       d.Query,
		TopK:        topK,
		UseSemantic: useSemantic,
		UseKeyword:  useKeyword,
		Filters:     facade.Filters{Theme: d.Filters.Theme, Category: d.Filters.Category},
		UserID:      d.UserID,
	}
}

// searchResponseDTO mirrors §4.10's results/total_found/query_context/
// methods_used schema.
type searchResponseDTO struct {
	Results      []*models.Candidate  `json:"results"`
	TotalFound   int                  `json:"total_found"`
	QueryContext *models.Query        `json:"query_context"`
	MethodsUsed  facade.MethodsUsed   `json:"methods_used"`
	Warnings     []string             `json:"warnings,omitempty"`
	Pipeline     router.Pipeline      `json:"pipeline,omitempty"`
}

func newSearchResponseDTO(r *facade.SearchResponse) searchResponseDTO {
	return searchResponseDTO{
		Results:      r.Results,
		TotalFound:   r.TotalFound,
		QueryContext: r.QueryContext,
		MethodsUsed:  r.MethodsUsed,
		Warnings:     r.Warnings,
		Pipeline:     r.Pipeline,
	}
}

// startSessionRequestDTO is the body of POST /api/start_session.
type startSessionRequestDTO struct {
	UserID string `json:"user_id" validate:"required"`
}

// sessionActionRequestDTO is the body of POST /api/nl/process: a generic
// envelope dispatching on Action, matching §6's "session action" row.
type sessionActionRequestDTO struct {
	SessionID string                 `json:"session_id" validate:"required"`
	Action    string                 `json:"action" validate:"required"`
	Payload   map[string]interface{} `json:"payload"`
}

type dataTypePayload struct {
	Kind      string `json:"kind"`
	SubSource string `json:"sub_source"`
}

type queryPayload struct {
	Query string `json:"query"`
}

type confirmVariablesPayload struct {
	Codes []string `json:"codes"`
}

type errorResponseDTO struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Warning string `json:"warning,omitempty"`
}

type migrationTestRequestDTO struct {
	UserID string `json:"user_id" validate:"required"`
}
