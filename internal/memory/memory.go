// Package memory implements the analyst similarity memory: a TF-IDF index
// over previously classified contract descriptions. Before classifying a new
// description, the pipeline searches the memory for similar past contracts
// and injects the best match into the prompt as a grounding example; after
// validation, the finished record is appended so later rows benefit from it.
package memory

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"defrec/internal/logging"
)

// Example is one remembered contract: the raw description plus the
// classification fields the analyst confirmed for it.
type Example struct {
	ID          string
	Description string
	Fields      map[string]string
}

// Match is one search result.
type Match struct {
	Example Example
	Score   float64
}

// Persister journals examples durably. The memory works without one (RAM
// only) so tests and cold starts need no database.
type Persister interface {
	LoadAll(ctx context.Context) ([]Example, error)
	Add(ctx context.Context, ex Example) error
}

// Memory is the in-RAM TF-IDF index. All methods are safe for concurrent
// use; Append rebuilds the index under the write lock.
type Memory struct {
	mu       sync.RWMutex
	examples []Example
	docs     [][]string // tokenized descriptions, parallel to examples

	idf     map[string]float64
	vectors []map[string]float64 // L2-normalized TF-IDF, parallel to examples

	minSimilarity float64
	persist       Persister
}

// New creates an empty memory. persist may be nil.
func New(minSimilarity float64, persist Persister) *Memory {
	return &Memory{
		minSimilarity: minSimilarity,
		persist:       persist,
	}
}

// Load pulls all journaled examples from the persister and indexes them.
// Without a persister it is a no-op.
func (m *Memory) Load(ctx context.Context) error {
	if m.persist == nil {
		return nil
	}
	examples, err := m.persist.LoadAll(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.examples = examples
	m.docs = m.docs[:0]
	for _, ex := range examples {
		m.docs = append(m.docs, tokenize(ex.Description))
	}
	m.rebuildLocked()

	logging.Get(logging.CategoryMemory).Sugar().Infow("memory loaded", "examples", len(examples))
	return nil
}

// Import indexes a batch of examples with a single index rebuild, then
// journals them when a persister is attached. Journal failures degrade those
// entries to RAM-only, never fail the caller.
func (m *Memory) Import(ctx context.Context, examples []Example) {
	for i := range examples {
		if examples[i].ID == "" {
			examples[i].ID = uuid.NewString()
		}
	}

	m.mu.Lock()
	for _, ex := range examples {
		m.examples = append(m.examples, ex)
		m.docs = append(m.docs, tokenize(ex.Description))
	}
	m.rebuildLocked()
	m.mu.Unlock()

	if m.persist == nil {
		return
	}
	for _, ex := range examples {
		if err := m.persist.Add(ctx, ex); err != nil {
			logging.Get(logging.CategoryMemory).Sugar().Warnw("example journal failed, memory is RAM-only for this entry",
				"id", ex.ID, "error", err)
		}
	}
}

// Len returns the number of indexed examples.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.examples)
}

// Search returns up to k examples similar to query, best first. Matches
// below the relevance floor are dropped; an empty memory returns nothing.
func (m *Memory) Search(query string, k int) []Match {
	if k <= 0 {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.examples) == 0 {
		return nil
	}

	qvec := m.vectorizeLocked(tokenize(query))
	if len(qvec) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(m.examples))
	for i, dvec := range m.vectors {
		score := dot(qvec, dvec)
		if score >= m.minSimilarity {
			matches = append(matches, Match{Example: m.examples[i], Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Append indexes a newly classified example and journals it when a persister
// is attached. Journal failures degrade to RAM-only, never fail the caller.
func (m *Memory) Append(ctx context.Context, ex Example) {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}

	m.mu.Lock()
	m.examples = append(m.examples, ex)
	m.docs = append(m.docs, tokenize(ex.Description))
	m.rebuildLocked()
	m.mu.Unlock()

	if m.persist != nil {
		if err := m.persist.Add(ctx, ex); err != nil {
			logging.Get(logging.CategoryMemory).Sugar().Warnw("example journal failed, memory is RAM-only for this entry",
				"id", ex.ID, "error", err)
		}
	}
}

// rebuildLocked recomputes document frequencies and normalized vectors.
// Caller holds the write lock.
func (m *Memory) rebuildLocked() {
	n := len(m.docs)
	df := make(map[string]int)
	for _, doc := range m.docs {
		seen := make(map[string]bool, len(doc))
		for _, t := range doc {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	m.idf = make(map[string]float64, len(df))
	for t, d := range df {
		m.idf[t] = math.Log(float64(1+n)/float64(1+d)) + 1
	}

	m.vectors = make([]map[string]float64, n)
	for i, doc := range m.docs {
		m.vectors[i] = m.vectorizeLocked(doc)
	}
}

// vectorizeLocked builds the L2-normalized TF-IDF vector for tokens, using
// the corpus IDF. Tokens outside the vocabulary are ignored.
func (m *Memory) vectorizeLocked(tokens []string) map[string]float64 {
	vec := make(map[string]float64)
	for _, t := range tokens {
		if idf, ok := m.idf[t]; ok {
			vec[t] += idf
		}
	}
	var norm float64
	for _, w := range vec {
		norm += w * w
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)
	for t := range vec {
		vec[t] /= norm
	}
	return vec
}

func dot(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for t, w := range a {
		sum += w * b[t]
	}
	return sum
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// stopWords are dropped before indexing; contract boilerplate terms would
// otherwise dominate every similarity score.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "for": true, "in": true, "on": true, "by": true, "with": true,
	"at": true, "from": true, "as": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "has": true, "have": true,
	"had": true, "will": true, "this": true, "that": true, "these": true,
	"those": true, "it": true, "its": true, "under": true, "per": true,
}

func tokenize(text string) []string {
	var out []string
	for _, t := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if len(t) < 2 || stopWords[t] {
			continue
		}
		out = append(out, t)
	}
	return out
}
