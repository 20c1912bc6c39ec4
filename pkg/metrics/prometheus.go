package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultQueryTimeout = 5 * time.Second
	defaultWindow       = time.Hour
)

// PromAccessor is a read adapter over the Prometheus HTTP API.
//
// It expects the orchestrator's exported series:
//
//	agent_requests_total{agent_name, variant, status}
//	agent_latency_seconds_bucket{agent_name, variant, le}
//	agent_cost_cents_total{agent_name, variant}
type PromAccessor struct {
	baseURL    string
	httpClient *http.Client
}

// NewPromAccessor creates an accessor against the given Prometheus base URL
// (e.g. "http://localhost:9090").
func NewPromAccessor(baseURL string) *PromAccessor {
	return &PromAccessor{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultQueryTimeout,
		},
	}
}

// promResponse is the subset of the Prometheus instant-query response we read.
type promResponse struct {
	Status string `json:"status"`
	Data   struct {
		Result []struct {
			Value [2]any `json:"value"`
		} `json:"result"`
	} `json:"data"`
}

// Query aggregates request count, success rate, P95 latency, and cost for
// the agent/variant pair over the trailing window.
func (a *PromAccessor) Query(ctx context.Context, agentName string, variant Variant, window time.Duration) (Snapshot, error) {
	if window <= 0 {
		window = defaultWindow
	}
	rang := formatPromDuration(window)
	selector := fmt.Sprintf(`agent_name=%q,variant=%q`, agentName, string(variant))

	total, err := a.scalar(ctx, fmt.Sprintf(
		`sum(increase(agent_requests_total{%s}[%s]))`, selector, rang))
	if err != nil {
		return Snapshot{}, err
	}

	// Zero-sample sentinel: do not issue the remaining queries, their
	// ratios would be NaN anyway.
	count := int64(total + 0.5)
	if count == 0 {
		return Snapshot{Window: window}, nil
	}

	success, err := a.scalar(ctx, fmt.Sprintf(
		`sum(increase(agent_requests_total{%s,status="success"}[%s]))`, selector, rang))
	if err != nil {
		return Snapshot{}, err
	}

	p95Seconds, err := a.scalar(ctx, fmt.Sprintf(
		`histogram_quantile(0.95, sum by (le) (rate(agent_latency_seconds_bucket{%s}[%s])))`, selector, rang))
	if err != nil {
		return Snapshot{}, err
	}

	cost, err := a.scalar(ctx, fmt.Sprintf(
		`sum(increase(agent_cost_cents_total{%s}[%s]))`, selector, rang))
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Count:          count,
		SuccessRate:    success / total,
		P95LatencyMs:   p95Seconds * 1000,
		CostCentsTotal: cost,
		Window:         window,
	}, nil
}

// scalar issues an instant query and returns the first result's value.
// An empty result set is treated as zero, matching Prometheus semantics
// for counters that have never been incremented.
func (a *PromAccessor) scalar(ctx context.Context, query string) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v1/query?%s", a.baseURL,
		url.Values{"query": {query}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("building prometheus request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("querying prometheus: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("prometheus returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed promResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decoding prometheus response: %w", err)
	}

	if parsed.Status != "success" {
		return 0, fmt.Errorf("prometheus query failed: status %q", parsed.Status)
	}

	if len(parsed.Data.Result) == 0 {
		return 0, nil
	}

	raw, ok := parsed.Data.Result[0].Value[1].(string)
	if !ok {
		return 0, fmt.Errorf("unexpected prometheus value type %T", parsed.Data.Result[0].Value[1])
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing prometheus value %q: %w", raw, err)
	}

	// histogram_quantile returns NaN for empty buckets
	if value != value {
		return 0, nil
	}

	return value, nil
}

// formatPromDuration renders a duration as a PromQL range like "30m" or "2h".
func formatPromDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	if d%time.Minute == 0 {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
