package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"audiencelens/internal/catalog"
	"audiencelens/internal/config"
	"audiencelens/internal/facade"
	"audiencelens/internal/semantic"
)

const testCatalogCSV = "code,name,description,category,theme,product,domain,data_type\n" +
	"AGE_25_34,Adults 25-34,\"Adults aged 25-34\",demographic,theme1,product1,automotive,numeric\n" +
	"INCOME_HIGH,High Income,\"Household income over $100k\",financial,theme1,product1,finance,numeric\n"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCatalogCSV), 0644))

	cat, err := catalog.New("", path, "")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	sem := semantic.Build(cat.Snapshot(), nil, cfg.Embedding, cfg.Resilience)
	svc := facade.New(cfg, cat, sem, nil)

	return NewRouter(svc, cfg.HTTP, zap.NewNop()).Setup()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth_ReportsOK(t *testing.T) {
	handler := newTestRouter(t)
	rec := doJSON(t, handler, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleSearch_ReturnsCandidates(t *testing.T) {
	handler := newTestRouter(t)
	rec := doJSON(t, handler, http.MethodPost, "/api/enhanced-variable-picker/search", map[string]interface{}{
		"query":       "income",
		"top_k":       5,
		"use_keyword": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "INCOME_HIGH", resp.Results[0].Code)
}

func TestHandleSearch_OmittedTopKUsesDefaultNoWarning(t *testing.T) {
	handler := newTestRouter(t)
	rec := doJSON(t, handler, http.MethodPost, "/api/enhanced-variable-picker/search", map[string]interface{}{
		"query":       "income",
		"use_keyword": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Warnings)
}

func TestHandleSearch_ExplicitZeroTopKClampsWithWarning(t *testing.T) {
	handler := newTestRouter(t)
	rec := doJSON(t, handler, http.MethodPost, "/api/enhanced-variable-picker/search", map[string]interface{}{
		"query":       "income",
		"top_k":       0,
		"use_keyword": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Warnings)
	assert.LessOrEqual(t, len(resp.Results), 1)
}

func TestHandleSearch_RejectsMissingQuery(t *testing.T) {
	handler := newTestRouter(t)
	rec := doJSON(t, handler, http.MethodPost, "/api/enhanced-variable-picker/search", map[string]interface{}{
		"top_k": 5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetVariable_NotFoundTranslatesTo404(t *testing.T) {
	handler := newTestRouter(t)
	rec := doJSON(t, handler, http.MethodGet, "/api/enhanced-variable-picker/variable/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var errResp errorResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "not_found", errResp.Kind)
}

func TestHandleGetVariable_Found(t *testing.T) {
	handler := newTestRouter(t)
	rec := doJSON(t, handler, http.MethodGet, "/api/enhanced-variable-picker/variable/AGE_25_34", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleStats_ReportsCatalogSize(t *testing.T) {
	handler := newTestRouter(t)
	rec := doJSON(t, handler, http.MethodGet, "/api/enhanced-variable-picker/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats facade.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalVariables)
}

func TestSessionLifecycle_StartAndCancel(t *testing.T) {
	handler := newTestRouter(t)

	startRec := doJSON(t, handler, http.MethodPost, "/api/start_session", map[string]interface{}{
		"user_id": "u-1",
	})
	require.Equal(t, http.StatusOK, startRec.Code)

	var started struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(startRec.Body.Bytes(), &started))
	require.NotEmpty(t, started.ID)

	cancelRec := doJSON(t, handler, http.MethodPost, "/api/nl/process", map[string]interface{}{
		"session_id": started.ID,
		"action":     "cancel",
	})
	assert.Equal(t, http.StatusOK, cancelRec.Code)
}

func TestSessionAction_UnknownActionIsBadRequest(t *testing.T) {
	handler := newTestRouter(t)

	startRec := doJSON(t, handler, http.MethodPost, "/api/start_session", map[string]interface{}{
		"user_id": "u-2",
	})
	require.Equal(t, http.StatusOK, startRec.Code)
	var started struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(startRec.Body.Bytes(), &started))

	rec := doJSON(t, handler, http.MethodPost, "/api/nl/process", map[string]interface{}{
		"session_id": started.ID,
		"action":     "does_not_exist",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMigrationStatusAndTest(t *testing.T) {
	handler := newTestRouter(t)

	statusRec := doJSON(t, handler, http.MethodGet, "/api/search/migration/status", nil)
	assert.Equal(t, http.StatusOK, statusRec.Code)

	testRec := doJSON(t, handler, http.MethodPost, "/api/search/migration/test", map[string]interface{}{
		"user_id": "u-3",
	})
	assert.Equal(t, http.StatusOK, testRec.Code)
}
