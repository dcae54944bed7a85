package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-pricing-console/internal/logger"
	"ride-pricing-console/internal/pricing"
	"ride-pricing-console/internal/session"
	"ride-pricing-console/internal/types"
)

const batchBody = `{
  "rows": [
    {"index": 0, "price_recommended": 100.5, "p_complete_recommended": 0.8, "gm_pct": 12, "error": null},
    {"index": 1, "error": "Missing column Vehicle_Type"},
    {"index": 2, "price_recommended": 200, "p_complete_recommended": 0.6, "gm_pct": 8}
  ],
  "kpis": {"Completion_Lift_pp": 1.5, "Avg_Price": 150}
}`

// fakeEngine serves the pricing engine's endpoints.
func fakeEngine(t *testing.T) *httptest.Server {
	t.Helper()
	r := http.NewServeMux()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok": true}`)
	})
	r.HandleFunc("/recommend", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"price_recommended": 312.456, "p_complete_recommended": 0.7, "gm_pct": 15, "bounds": {"low": 280, "high": 340}}`)
	})
	r.HandleFunc("/recommend_batch", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("file"); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, `{"detail": "file required"}`)
			return
		}
		io.WriteString(w, batchBody)
	})
	r.HandleFunc("/kpis", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"detail": "scenario file is empty"}`)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	log := logger.NewWith("test", "error")
	client := pricing.New(fakeEngine(t).URL, pricing.Options{
		SingleTimeout: time.Second,
		BatchTimeout:  time.Second,
		HealthTimeout: time.Second,
		Logger:        log,
	})
	r := mux.NewRouter()
	NewHandler(session.New(client, log), log).RegisterRoutes(r)
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, path string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, body := range files {
		part, err := mw.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func TestLiveness(t *testing.T) {
	w := serve(newTestRouter(t), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestHealthRefresh(t *testing.T) {
	r := newTestRouter(t)
	w := serve(r, httptest.NewRequest(http.MethodPost, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["ok"])

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	st := decode(t, w)
	assert.Equal(t, map[string]any{"ok": true}, st["health"])
}

func TestRecommendAcceptsWrappedAndBareRecords(t *testing.T) {
	r := newTestRouter(t)
	rec, err := json.Marshal(types.DefaultRideRecord())
	require.NoError(t, err)

	for _, body := range []string{`{"record": ` + string(rec) + `}`, string(rec)} {
		w := serve(r, httptest.NewRequest(http.MethodPost, "/api/recommend", strings.NewReader(body)))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		out := decode(t, w)
		assert.Equal(t, 312.456, out["result"].(map[string]any)["price_recommended"])
		assert.Equal(t, "Recommended price: 312.46", out["notice"].(map[string]any)["text"])
	}
}

func TestRecommendRejectsInvalidRecord(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodPost, "/api/recommend", strings.NewReader(`{"record": {"Vehicle_Type": "Luxury"}}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "Vehicle_Type")

	w = serve(r, httptest.NewRequest(http.MethodPost, "/api/recommend", strings.NewReader(`[1, 2]`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchThenViews(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, multipartRequest(t, "/api/batch", map[string]string{"file": "a,b\n1,2\n"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, map[string]any{"total": 3.0, "succeeded": 2.0, "failed": 1.0}, out["summary"])
	assert.Equal(t, "Processed 2 records, 1 had errors", out["notice"].(map[string]any)["text"])
	assert.Equal(t, 1.5, out["kpis"].(map[string]any)["Completion_Lift_pp"])

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/rows", nil))
	var rows []map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "Missing column Vehicle_Type", rows[1]["error"])

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/chart", nil))
	var points []map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&points))
	require.Len(t, points, 2)
	assert.Equal(t, "#1", points[0]["label"])
	assert.Equal(t, "#2", points[1]["label"])
	assert.Equal(t, 200.0, points[1]["price"])

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/chart.png", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	stats := decode(t, w)
	assert.Equal(t, 150.25, stats["mean_price_recommended"].(map[string]any)["value"])
}

func TestBatchRequiresFile(t *testing.T) {
	r := newTestRouter(t)
	w := serve(r, multipartRequest(t, "/api/batch", map[string]string{"other": "x"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, `missing file field "file"`, decode(t, w)["error"])
}

func TestChartPNGWithoutBatch(t *testing.T) {
	w := serve(newTestRouter(t), httptest.NewRequest(http.MethodGet, "/api/chart.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompareFailureIsBadGateway(t *testing.T) {
	r := newTestRouter(t)
	w := serve(r, multipartRequest(t, "/api/kpis", map[string]string{"file_base": "a\n1\n", "file_scn": "a\n"}))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	out := decode(t, w)
	assert.Equal(t, "scenario file is empty", out["error"])
	assert.Equal(t, map[string]any{"level": "error", "text": "scenario file is empty"}, out["notice"])

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	st := decode(t, w)
	assert.Equal(t, "scenario file is empty", st["error"])
	assert.Nil(t, st["comparison"])
}
