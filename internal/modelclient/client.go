// Package modelclient talks to the external prediction services that score
// each diagnostic test.
package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Skufu/neurorisk/internal/assessment"
	"github.com/Skufu/neurorisk/internal/catalog"
)

// ErrUnavailable wraps every failure to obtain a usable prediction.
var ErrUnavailable = errors.New("modelclient: prediction unavailable")

const maxResponseBytes = 64 << 10

// Observer receives the latency of each remote call.
type Observer interface {
	ObserveRemoteLatency(test string, outcome string, d time.Duration)
}

// Client implements assessment.Scorer over HTTP+JSON.
type Client struct {
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	logger   zerolog.Logger
	observer Observer
}

type Option func(*Client)

// WithHTTPClient sets the client used for requests. The Client works on a
// copy, so the caller's value is never modified. nil is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout overrides the request timeout, 10s by default, in either order
// with WithHTTPClient. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.http
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	c.http = &hc
	return c
}

type predictResponse struct {
	RiskPercentage *float64 `json:"riskPercentage"`
	Confidence     *float64 `json:"confidence"`
}

// Predict posts the features for test to its endpoint.
func (c *Client) Predict(ctx context.Context, test *catalog.Test, features map[string]float64) (assessment.Prediction, error) {
	start := time.Now()
	pred, err := c.predict(ctx, test, features)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if c.observer != nil {
		c.observer.ObserveRemoteLatency(test.ID, outcome, time.Since(start))
	}
	c.logger.Debug().
		Str("test", test.ID).
		Str("outcome", outcome).
		Dur("latency", time.Since(start)).
		Msg("model prediction")
	return pred, err
}

func (c *Client) predict(ctx context.Context, test *catalog.Test, features map[string]float64) (assessment.Prediction, error) {
	body, err := json.Marshal(BuildPayload(features))
	if err != nil {
		return assessment.Prediction{}, fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+test.Endpoint, bytes.NewReader(body))
	if err != nil {
		return assessment.Prediction{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return assessment.Prediction{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return assessment.Prediction{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out predictResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return assessment.Prediction{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if err := out.check(); err != nil {
		return assessment.Prediction{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return assessment.Prediction{RiskPercentage: *out.RiskPercentage, Confidence: *out.Confidence}, nil
}

func (r predictResponse) check() error {
	if r.RiskPercentage == nil || r.Confidence == nil {
		return errors.New("response missing riskPercentage or confidence")
	}
	if p := *r.RiskPercentage; math.IsNaN(p) || p < 0 || p > 100 {
		return fmt.Errorf("riskPercentage %v outside [0, 100]", p)
	}
	if cf := *r.Confidence; math.IsNaN(cf) || cf < 0 || cf > 1 {
		return fmt.Errorf("confidence %v outside [0, 1]", cf)
	}
	return nil
}

// BuildPayload expands dotted feature names into nested objects, so
// "datScan.caudateR" becomes {"datScan": {"caudateR": v}}. Flat names stay
// at the top level.
func BuildPayload(features map[string]float64) map[string]any {
	out := map[string]any{}
	for name, v := range features {
		parts := strings.Split(name, ".")
		node := out
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return out
}
