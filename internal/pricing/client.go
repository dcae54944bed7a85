package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ride-pricing-console/internal/config"
	"ride-pricing-console/internal/logger"
	"ride-pricing-console/internal/numeric"
	"ride-pricing-console/internal/types"
)

// Operation names, used in errors and logs.
const (
	OpHealth         = "health"
	OpRecommend      = "recommend"
	OpRecommendBatch = "recommend_batch"
	OpCompareKPIs    = "kpis"
)

const maxResponseBytes = 64 << 20

// Upload is one file sent as a multipart field.
type Upload struct {
	Name string
	Data []byte
}

type Options struct {
	SingleTimeout time.Duration
	BatchTimeout  time.Duration
	HealthTimeout time.Duration
	HTTPClient    *http.Client
	Logger        *logger.Logger
}

// Client talks to the remote pricing engine. Every method returns *Error on
// failure and never retries on its own.
type Client struct {
	base          string
	http          *http.Client
	log           *logger.Logger
	singleTimeout time.Duration
	batchTimeout  time.Duration
	healthTimeout time.Duration
}

func New(base string, opts Options) *Client {
	c := &Client{
		base:          strings.TrimRight(base, "/"),
		http:          opts.HTTPClient,
		log:           opts.Logger,
		singleTimeout: opts.SingleTimeout,
		batchTimeout:  opts.BatchTimeout,
		healthTimeout: opts.HealthTimeout,
	}
	if c.http == nil {
		// deadlines come from per-call contexts
		c.http = &http.Client{}
	}
	if c.log == nil {
		c.log = logger.New()
	}
	c.log = c.log.Component("pricing-client")
	if c.singleTimeout <= 0 {
		c.singleTimeout = 30 * time.Second
	}
	if c.batchTimeout <= 0 {
		c.batchTimeout = 120 * time.Second
	}
	if c.healthTimeout <= 0 {
		c.healthTimeout = 10 * time.Second
	}
	return c
}

// NewFromConfig builds a client from loaded configuration.
func NewFromConfig(cfg *config.Config, log *logger.Logger) *Client {
	return New(cfg.APIBase, Options{
		SingleTimeout: cfg.SingleTimeout,
		BatchTimeout:  cfg.BatchTimeout,
		HealthTimeout: cfg.HealthTimeout,
		Logger:        log,
	})
}

// BaseURL returns the engine address the client is bound to.
func (c *Client) BaseURL() string { return c.base }

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (types.HealthStatus, error) {
	obj, err := c.doObject(ctx, OpHealth, c.healthTimeout, http.MethodGet, "/health", nil, "")
	if err != nil {
		return types.HealthStatus{}, err
	}
	status := types.HealthStatus{OK: numeric.Truthy(obj["ok"])}
	for k, v := range obj {
		if k == "ok" {
			continue
		}
		if status.Details == nil {
			status.Details = map[string]any{}
		}
		status.Details[k] = v
	}
	return status, nil
}

// Recommend calls POST /recommend with {"record": rec}. A 2xx reply without
// price_recommended is a KindMalformed error.
func (c *Client) Recommend(ctx context.Context, rec types.RideRecord) (types.RecommendationResult, error) {
	payload, err := json.Marshal(types.RecommendRequest{Record: rec})
	if err != nil {
		return types.RecommendationResult{}, newError(OpRecommend, KindTransport, 0, fmt.Errorf("encode record: %w", err))
	}
	obj, perr := c.doObject(ctx, OpRecommend, c.singleTimeout, http.MethodPost, "/recommend", bytes.NewReader(payload), "application/json")
	if perr != nil {
		return types.RecommendationResult{}, perr
	}
	if v, ok := obj["price_recommended"]; !ok || v == nil {
		return types.RecommendationResult{}, newError(OpRecommend, KindMalformed, http.StatusOK, fmt.Errorf("response has no price_recommended"))
	}

	res := types.RecommendationResult{
		PriceRecommended:     numeric.Coerce(obj["price_recommended"]),
		PCompleteRecommended: numeric.Coerce(obj["p_complete_recommended"]),
		GMPct:                numeric.Coerce(obj["gm_pct"]),
	}
	if b, ok := obj["bounds"].(map[string]any); ok {
		res.Bounds = types.Bounds{Low: numeric.Coerce(b["low"]), High: numeric.Coerce(b["high"])}
	}
	return res, nil
}

// RecommendBatch uploads a CSV file to POST /recommend_batch as field "file".
// A 2xx reply without a rows array is a KindMalformed error. Rows are
// returned raw; see package normalize.
func (c *Client) RecommendBatch(ctx context.Context, file Upload) (types.BatchResponse, error) {
	body, contentType, err := multipartBody(map[string]Upload{"file": file})
	if err != nil {
		return types.BatchResponse{}, newError(OpRecommendBatch, KindTransport, 0, err)
	}
	obj, perr := c.doObject(ctx, OpRecommendBatch, c.batchTimeout, http.MethodPost, "/recommend_batch", body, contentType)
	if perr != nil {
		return types.BatchResponse{}, perr
	}
	rows, ok := obj["rows"].([]any)
	if !ok {
		return types.BatchResponse{}, newError(OpRecommendBatch, KindMalformed, http.StatusOK, fmt.Errorf("response has no rows array"))
	}
	return types.BatchResponse{Rows: rows, KPIs: c.kpiMap(obj["kpis"])}, nil
}

// CompareKPIs uploads a base and a scenario file to POST /kpis.
func (c *Client) CompareKPIs(ctx context.Context, base, scenario Upload) (types.KPIMap, error) {
	body, contentType, err := multipartBody(map[string]Upload{"file_base": base, "file_scn": scenario})
	if err != nil {
		return nil, newError(OpCompareKPIs, KindTransport, 0, err)
	}
	obj, perr := c.doObject(ctx, OpCompareKPIs, c.batchTimeout, http.MethodPost, "/kpis", body, contentType)
	if perr != nil {
		return nil, perr
	}
	kpis := make(types.KPIMap, len(obj))
	for k, v := range obj {
		kpis[k] = numeric.Coerce(v)
	}
	return kpis, nil
}

func (c *Client) kpiMap(v any) types.KPIMap {
	m, ok := v.(map[string]any)
	if !ok {
		if v != nil {
			c.log.WithField("kpis_type", fmt.Sprintf("%T", v)).Warn("ignoring non-object kpis")
		}
		return nil
	}
	kpis := make(types.KPIMap, len(m))
	for k, val := range m {
		kpis[k] = numeric.Coerce(val)
	}
	return kpis
}

func multipartBody(files map[string]Upload) (io.Reader, string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	// fixed order keeps request bodies reproducible
	for _, field := range []string{"file", "file_base", "file_scn"} {
		f, ok := files[field]
		if !ok {
			continue
		}
		name := f.Name
		if name == "" {
			name = field + ".csv"
		}
		part, err := w.CreateFormFile(field, name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file %s: %w", field, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write form file %s: %w", field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &b, w.FormDataContentType(), nil
}

// doObject performs one bounded request and decodes a JSON object body.
func (c *Client) doObject(ctx context.Context, op string, timeout time.Duration, method, path string, body io.Reader, contentType string) (map[string]any, *Error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqID := uuid.New().String()
	endpoint := c.base + path
	log := c.log.WithFields(logrus.Fields{"op": op, "endpoint": endpoint, "req_id": reqID})

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		log.WithError(err).Error("build request failed")
		return nil, newError(op, KindTransport, 0, err)
	}
	req.Header.Set(logger.RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		perr := classifyTransport(op, err)
		log.WithError(err).WithField("kind", perr.Kind).WithField("duration_ms", time.Since(start).Milliseconds()).Warn("engine request failed")
		return nil, perr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	log = log.WithFields(logrus.Fields{"http_status": resp.StatusCode, "duration_ms": time.Since(start).Milliseconds()})
	if err != nil {
		perr := classifyTransport(op, err)
		log.WithError(err).WithField("kind", perr.Kind).Warn("reading engine response failed")
		return nil, perr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := serverError(op, resp.StatusCode, raw)
		log.WithField("kind", perr.Kind).WithField("message", perr.Message).Warn("engine returned error status")
		return nil, perr
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		if err == nil {
			err = fmt.Errorf("body is not a JSON object")
		}
		perr := newError(op, KindMalformed, resp.StatusCode, fmt.Errorf("decode body: %w", err))
		log.WithError(err).WithField("kind", perr.Kind).Warn("engine response is not a JSON object")
		return nil, perr
	}
	log.Debug("engine request complete")
	return obj, nil
}
