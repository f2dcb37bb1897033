package retrieval

import "sort"

// fusedCandidate tracks per-source scores for one chunk during fusion.
type fusedCandidate struct {
	result   Result
	fused    float64
	semScore float64
	lexScore float64
	hasSem   bool
}

// Merger fuses semantic and lexical result lists into one ranked list
// using a weighted sum: fused = wSem*semScore + wLex*lexScore, with a
// missing source contributing 0.
type Merger struct {
	weights Weights
}

// NewMerger creates a merger with the given fusion weights.
func NewMerger(weights Weights) *Merger {
	if weights.Semantic == 0 && weights.Lexical == 0 {
		weights = DefaultWeights()
	}
	return &Merger{weights: weights}
}

// Merge deduplicates by chunk ID, computes fused scores, sorts, and
// truncates to n. When a chunk appears in both lists the semantic
// text/metadata wins. Never fails; empty inputs yield an empty slice.
//
// Sort order: fused score desc, then semantic score desc, then chunk
// ID ascending for determinism.
func (m *Merger) Merge(semantic, lexical []Result, n int) []Result {
	if len(semantic) == 0 && len(lexical) == 0 {
		return []Result{}
	}

	candidates := make(map[string]*fusedCandidate, len(semantic)+len(lexical))

	for _, r := range semantic {
		c := m.getOrCreate(candidates, r)
		c.semScore = r.Score
		c.hasSem = true
		c.result.Text = r.Text
		c.result.Metadata = r.Metadata
	}

	for _, r := range lexical {
		c := m.getOrCreate(candidates, r)
		c.lexScore = r.Score
		if !c.hasSem {
			c.result.Text = r.Text
			c.result.Metadata = r.Metadata
		}
	}

	for _, c := range candidates {
		c.fused = m.weights.Semantic*c.semScore + m.weights.Lexical*c.lexScore
	}

	results := m.toSortedSlice(candidates)

	if n > 0 && len(results) > n {
		results = results[:n]
	}
	return results
}

func (m *Merger) getOrCreate(candidates map[string]*fusedCandidate, r Result) *fusedCandidate {
	if c, ok := candidates[r.ChunkID]; ok {
		return c
	}
	c := &fusedCandidate{
		result: Result{ChunkID: r.ChunkID, Method: MethodHybrid},
	}
	candidates[r.ChunkID] = c
	return c
}

func (m *Merger) toSortedSlice(candidates map[string]*fusedCandidate) []Result {
	ordered := make([]*fusedCandidate, 0, len(candidates))
	for _, c := range candidates {
		ordered = append(ordered, c)
	}

	sort.Slice(ordered, func(i, j int) bool {
		return m.compare(ordered[i], ordered[j])
	})

	results := make([]Result, len(ordered))
	for i, c := range ordered {
		c.result.Score = c.fused
		results[i] = c.result
	}
	return results
}

// compare returns true if a ranks before b.
func (m *Merger) compare(a, b *fusedCandidate) bool {
	if a.fused != b.fused {
		return a.fused > b.fused
	}
	if a.semScore != b.semScore {
		return a.semScore > b.semScore
	}
	return a.result.ChunkID < b.result.ChunkID
}
