package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Cross-encoder reranker defaults.
const (
	DefaultRerankModel   = "cross-encoder-small"
	DefaultRerankTimeout = 10 * time.Second
)

// CrossEncoderConfig configures the HTTP cross-encoder client.
type CrossEncoderConfig struct {
	// Endpoint is the reranking service URL.
	Endpoint string

	// Model is the cross-encoder model alias.
	Model string

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// rerankRequest is the wire format for the reranking service.
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// CrossEncoderReranker scores query-document pairs via an external
// cross-encoder service. A circuit breaker shields the pipeline from
// a flapping service: once open, calls fail fast and the pipeline
// falls back to the pre-rerank order without waiting out the timeout.
type CrossEncoderReranker struct {
	client  *http.Client
	config  CrossEncoderConfig
	breaker *gobreaker.CircuitBreaker[[]float64]

	mu     sync.RWMutex
	closed bool
}

var _ Reranker = (*CrossEncoderReranker)(nil)

// NewCrossEncoderReranker creates a reranker client. No health check
// at construction time; the reranker is best-effort and probed lazily.
func NewCrossEncoderReranker(cfg CrossEncoderConfig) *CrossEncoderReranker {
	if cfg.Model == "" {
		cfg.Model = DefaultRerankModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRerankTimeout
	}

	breaker := gobreaker.NewCircuitBreaker[[]float64](gobreaker.Settings{
		Name:        "reranker",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("reranker_breaker_state_change",
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &CrossEncoderReranker{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		config:  cfg,
		breaker: breaker,
	}
}

// Rerank returns one score per document, parallel to the input.
func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, fmt.Errorf("reranker is closed")
	}
	r.mu.RUnlock()

	if len(documents) == 0 {
		return []float64{}, nil
	}

	return r.breaker.Execute(func() ([]float64, error) {
		return r.doRerank(ctx, query, documents)
	})
}

func (r *CrossEncoderReranker) doRerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	body, err := json.Marshal(rerankRequest{
		Model:     r.config.Model,
		Query:     query,
		Documents: documents,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.config.Endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("rerank failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(result.Scores) != len(documents) {
		return nil, fmt.Errorf("score count mismatch: sent %d documents, got %d scores", len(documents), len(result.Scores))
	}

	return result.Scores, nil
}

// Available probes the service health endpoint with a short deadline.
func (r *CrossEncoderReranker) Available(ctx context.Context) bool {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return false
	}
	r.mu.RUnlock()

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, r.config.Endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Close shuts down the client.
func (r *CrossEncoderReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
