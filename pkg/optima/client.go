// Package optima provides a client for the PriceOptima prediction service.
package optima

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultEndpoint is where a locally running prediction service listens.
const DefaultEndpoint = "http://127.0.0.1:8000/predict-price"

// maxErrorBody bounds how much of a failed response ends up in an error message.
const maxErrorBody = 512

// Client defines the prediction service operations.
type Client interface {
	// PredictPrice posts a pricing scenario and returns the service's answer.
	PredictPrice(ctx context.Context, req PriceRequest) (*PriceResponse, error)
}

// PriceRequest is the JSON body of a prediction call. Every field is always
// sent.
type PriceRequest struct {
	Price      float64 `json:"price"`
	StockLevel int64   `json:"stock_level"`
	DayOfWeek  int     `json:"day_of_week"`
	IsWeekend  int     `json:"is_weekend"`
	Month      int     `json:"month"`
}

// PriceResponse is the service's answer. When the body does not carry both
// numeric keys the response is still returned; Complete reports false and
// Raw holds the body for display as-is.
type PriceResponse struct {
	PredictedDemand  float64         `json:"predicted_demand" yaml:"predicted_demand"`
	RecommendedPrice float64         `json:"recommended_price" yaml:"recommended_price"`
	Raw              json.RawMessage `json:"-" yaml:"-"`

	complete bool
}

// Complete reports whether both predicted_demand and recommended_price were
// present as numbers.
func (r *PriceResponse) Complete() bool {
	return r != nil && r.complete
}

// ParseResponse interprets a 2xx body. Only a syntactically invalid body is
// an error; any valid JSON is accepted.
func ParseResponse(body []byte) (*PriceResponse, error) {
	if !json.Valid(body) {
		return nil, NewTransportError(ReasonDecode, 0, eris.New("optima: response body is not valid JSON"))
	}

	resp := &PriceResponse{Raw: append(json.RawMessage(nil), body...)}

	var probe struct {
		PredictedDemand  *float64 `json:"predicted_demand"`
		RecommendedPrice *float64 `json:"recommended_price"`
	}
	if err := json.Unmarshal(body, &probe); err == nil &&
		probe.PredictedDemand != nil && probe.RecommendedPrice != nil {
		resp.PredictedDemand = *probe.PredictedDemand
		resp.RecommendedPrice = *probe.RecommendedPrice
		resp.complete = true
	}

	return resp, nil
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout bounds each request. Zero leaves requests unbounded apart from
// the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.timeout = d
	}
}

type httpClient struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
}

// NewClient creates a client that posts to endpoint.
func NewClient(endpoint string, opts ...Option) Client {
	c := &httpClient{
		endpoint: endpoint,
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) PredictPrice(ctx context.Context, in PriceRequest) (*PriceResponse, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, eris.Wrap(err, "optima: marshal request")
	}

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "optima: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewTransportError(ReasonCanceled, 0, eris.Wrap(err, "optima: request canceled"))
		}
		return nil, NewTransportError(ReasonConnect, 0, eris.Wrap(err, "optima: request failed"))
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTransportError(ReasonConnect, resp.StatusCode, eris.Wrap(err, "optima: read response body"))
	}

	zap.L().Debug("optima: predict-price",
		zap.Int("status_code", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewTransportError(ReasonStatus, resp.StatusCode,
			eris.Errorf("optima: unexpected status %d: %s", resp.StatusCode, truncate(body, maxErrorBody)))
	}

	return ParseResponse(body)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
