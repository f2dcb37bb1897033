package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/civicmesh/retrieval/internal/analytics"
	"github.com/civicmesh/retrieval/internal/errors"
	"github.com/civicmesh/retrieval/internal/metrics"
)

// Adapter is one retrieval source (semantic or lexical).
type Adapter interface {
	Search(ctx context.Context, query string, k int) ([]Result, error)
}

// Request is one retrieval invocation.
type Request struct {
	Query        string
	TopK         int
	UserID       string
	CommunityID  string
	UseReranking bool
}

// Response is the outcome of one retrieval invocation.
type Response struct {
	Results       []Result `json:"results"`
	Context       string   `json:"context"`
	LatencyMs     int64    `json:"latencyMs"`
	RerankingUsed bool     `json:"rerankingUsed"`
}

// EngineOptions bound request parameters and adapter deadlines.
type EngineOptions struct {
	// DefaultTopK is used when the request leaves TopK unset.
	DefaultTopK int

	// MaxTopK is the upper bound on requested TopK.
	MaxTopK int

	// AdapterTimeout caps each adapter call. An adapter that misses
	// the deadline is treated as failed-empty.
	AdapterTimeout time.Duration
}

// DefaultEngineOptions returns the standard bounds.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		DefaultTopK:    5,
		MaxTopK:        50,
		AdapterTimeout: 5 * time.Second,
	}
}

// Engine runs the retrieval pipeline: parallel adapter fan-out,
// weighted fusion, optional reranking, context assembly, and async
// query logging.
type Engine struct {
	semantic Adapter
	lexical  Adapter

	mergerMu sync.RWMutex
	merger   *Merger

	reranker       Reranker
	rerankDisabled atomic.Bool

	formatter *ContextFormatter
	recorder  analytics.Recorder
	metrics   *metrics.Metrics
	opts      EngineOptions
	logger    *slog.Logger
}

// NewEngine wires the pipeline stages. reranker may be nil when
// reranking is disabled entirely; recorder and m may be nil.
func NewEngine(
	semantic Adapter,
	lexical Adapter,
	merger *Merger,
	reranker Reranker,
	formatter *ContextFormatter,
	recorder analytics.Recorder,
	m *metrics.Metrics,
	opts EngineOptions,
) *Engine {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = 50
	}
	if opts.AdapterTimeout <= 0 {
		opts.AdapterTimeout = 5 * time.Second
	}
	return &Engine{
		semantic:  semantic,
		lexical:   lexical,
		merger:    merger,
		reranker:  reranker,
		formatter: formatter,
		recorder:  recorder,
		metrics:   m,
		opts:      opts,
		logger:    slog.Default().With(slog.String("component", "retrieval")),
	}
}

// Retrieve executes one retrieval request.
//
// Only validation errors and total retrieval failure cross this
// boundary; a single failed adapter degrades to the survivor's
// results, and reranker failure falls back to the pre-rerank order.
func (e *Engine) Retrieve(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if req.Query == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}
	topK := req.TopK
	if topK == 0 {
		topK = e.opts.DefaultTopK
	}
	if topK < 0 || topK > e.opts.MaxTopK {
		return nil, errors.New(errors.ErrCodeInvalidTopK, "topK out of range", nil).
			WithDetail("topK", strconv.Itoa(topK)).
			WithDetail("max", strconv.Itoa(e.opts.MaxTopK))
	}

	willRerank := req.UseReranking && e.reranker != nil && !e.rerankDisabled.Load()

	// Candidate pool is wider when a rerank pass will narrow it.
	fetchK := topK
	if willRerank {
		fetchK = topK * 2
	}

	semResults, lexResults, failures := e.fanOut(ctx, req.Query, fetchK)
	if failures == 2 {
		if e.metrics != nil {
			e.metrics.QueriesTotal.WithLabelValues("error").Inc()
		}
		return nil, errors.TotalRetrievalFailure(nil)
	}

	e.mergerMu.RLock()
	merger := e.merger
	e.mergerMu.RUnlock()
	merged := merger.Merge(semResults, lexResults, fetchK)

	results, rerankingUsed := e.rerank(ctx, req.Query, merged, topK, willRerank)

	contextText := e.formatter.Format(results)
	latency := time.Since(start)

	if e.metrics != nil {
		e.metrics.QueriesTotal.WithLabelValues("ok").Inc()
		e.metrics.QueryLatency.Observe(latency.Seconds())
	}

	e.record(req, results, rerankingUsed, latency)

	return &Response{
		Results:       results,
		Context:       contextText,
		LatencyMs:     latency.Milliseconds(),
		RerankingUsed: rerankingUsed,
	}, nil
}

// SetWeights swaps the fusion weights at runtime. Used by config
// hot-reload; in-flight requests keep the merger they already hold.
func (e *Engine) SetWeights(w Weights) {
	e.mergerMu.Lock()
	e.merger = NewMerger(w)
	e.mergerMu.Unlock()
	e.logger.Info("fusion_weights_updated",
		slog.Float64("semantic", w.Semantic),
		slog.Float64("lexical", w.Lexical))
}

// SetRerankEnabled toggles reranking at runtime without swapping the
// reranker itself. Also driven by config hot-reload.
func (e *Engine) SetRerankEnabled(enabled bool) {
	if e.rerankDisabled.Load() == !enabled {
		return
	}
	e.rerankDisabled.Store(!enabled)
	e.logger.Info("rerank_enabled_updated", slog.Bool("enabled", enabled))
}

// fanOut runs both adapters in parallel with individual deadlines.
// Adapter errors are absorbed; the returned count says how many failed.
func (e *Engine) fanOut(ctx context.Context, query string, k int) (sem, lex []Result, failures int) {
	var semErr, lexErr error

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		semCtx, cancel := context.WithTimeout(gctx, e.opts.AdapterTimeout)
		defer cancel()
		sem, semErr = e.semantic.Search(semCtx, query, k)
		return nil
	})
	g.Go(func() error {
		lexCtx, cancel := context.WithTimeout(gctx, e.opts.AdapterTimeout)
		defer cancel()
		lex, lexErr = e.lexical.Search(lexCtx, query, k)
		return nil
	})
	_ = g.Wait()

	if semErr != nil {
		e.logger.Warn("semantic_adapter_failed", slog.String("error", semErr.Error()))
		if e.metrics != nil {
			e.metrics.AdapterFailures.WithLabelValues("semantic").Inc()
		}
		sem = nil
		failures++
	}
	if lexErr != nil {
		e.logger.Warn("lexical_adapter_failed", slog.String("error", lexErr.Error()))
		if e.metrics != nil {
			e.metrics.AdapterFailures.WithLabelValues("lexical").Inc()
		}
		lex = nil
		failures++
	}
	return sem, lex, failures
}

// rerank applies the reranker when requested, falling back to the
// merged order on any error. Fallback never fails the request.
func (e *Engine) rerank(ctx context.Context, query string, merged []Result, topK int, willRerank bool) ([]Result, bool) {
	if !willRerank || len(merged) == 0 {
		return truncate(merged, topK), false
	}

	documents := make([]string, len(merged))
	for i, r := range merged {
		documents[i] = r.Text
	}

	scores, err := e.reranker.Rerank(ctx, query, documents)
	if err == nil && len(scores) != len(merged) {
		err = fmt.Errorf("reranker returned %d scores for %d documents", len(scores), len(merged))
	}
	if err != nil {
		e.logger.Warn("rerank_fallback", slog.String("error", err.Error()))
		if e.metrics != nil {
			e.metrics.RerankFallbacks.Inc()
		}
		return truncate(merged, topK), false
	}

	// Cross-encoders return raw logits; min-max rescale to [0,1] like
	// the lexical adapter does with BM25 scores.
	normalized := normalizeRerankScores(scores)

	reranked := make([]Result, len(merged))
	copy(reranked, merged)
	for i := range reranked {
		reranked[i].Score = normalized[i]
		reranked[i].Method = MethodReranked
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})

	return truncate(reranked, topK), true
}

// normalizeRerankScores min-max scales rerank scores to [0,1]. When all
// scores are equal (including a single candidate) every score maps to
// 1.0, matching the lexical adapter's convention.
func normalizeRerankScores(scores []float64) []float64 {
	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	normalized := make([]float64, len(scores))
	spread := maxScore - minScore
	for i, s := range scores {
		if spread == 0 {
			normalized[i] = 1.0
		} else {
			normalized[i] = (s - minScore) / spread
		}
	}
	return normalized
}

// record hands the query event to the analytics recorder. The recorder
// is itself asynchronous, so this never blocks the response path.
func (e *Engine) record(req Request, results []Result, rerankingUsed bool, latency time.Duration) {
	if e.recorder == nil {
		return
	}

	chunkIDs := make([]string, len(results))
	scores := make([]float64, len(results))
	for i, r := range results {
		chunkIDs[i] = r.ChunkID
		scores[i] = r.Score
	}

	method := string(MethodHybrid)
	if rerankingUsed {
		method = string(MethodReranked)
	}

	e.recorder.Record(analytics.QueryEvent{
		UserID:         req.UserID,
		CommunityID:    req.CommunityID,
		QueryText:      req.Query,
		ResultChunkIDs: chunkIDs,
		Scores:         scores,
		Method:         method,
		LatencyMs:      latency.Milliseconds(),
		Timestamp:      time.Now().UTC(),
	})
}

func truncate(results []Result, n int) []Result {
	if results == nil {
		return []Result{}
	}
	if n > 0 && len(results) > n {
		return results[:n]
	}
	return results
}
