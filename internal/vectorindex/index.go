// Package vectorindex stores summary-level embeddings keyed by insight id and
// answers nearest-neighbor queries by cosine similarity. The index is a cache
// over the insight store: it persists to a single JSON file and can always be
// rebuilt from the records.
package vectorindex

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ryan258/insight-capsule/internal/domain"
)

// Index is a mutex-guarded brute-force cosine index.
type Index struct {
	mu        sync.RWMutex
	path      string
	dimension int
	records   map[string]domain.VectorRecord
}

type indexFile struct {
	Dimension int                   `json:"dimension"`
	Records   []domain.VectorRecord `json:"records"`
}

// Open loads the index file at path, or starts empty if it does not exist.
func Open(path string) (*Index, error) {
	idx := &Index{path: path, records: make(map[string]domain.VectorRecord)}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return idx, nil
		}
		return nil, &domain.IndexError{Op: "open", Err: err}
	}
	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &domain.IndexError{Op: "open", Err: err}
	}
	idx.dimension = f.Dimension
	for _, r := range f.Records {
		idx.records[r.InsightID] = r
	}
	return idx, nil
}

// Add inserts or replaces the record for its insight id. Re-adding the same
// id replaces, never duplicates.
func (x *Index) Add(rec domain.VectorRecord) error {
	if rec.InsightID == "" {
		return &domain.IndexError{Op: "add", Err: errors.New("empty insight id")}
	}
	if len(rec.Embedding) == 0 {
		return &domain.IndexError{Op: "add", Err: errors.New("empty embedding")}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.dimension == 0 {
		x.dimension = len(rec.Embedding)
	} else if len(rec.Embedding) != x.dimension {
		return &domain.IndexError{Op: "add", Err: errors.New("vector dimension mismatch")}
	}
	x.records[rec.InsightID] = rec
	return x.persistLocked()
}

// Remove drops the record for an insight id, if present.
func (x *Index) Remove(insightID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.records[insightID]; !ok {
		return nil
	}
	delete(x.records, insightID)
	return x.persistLocked()
}

// Count returns the number of indexed insights.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

// Query returns up to k results ordered by decreasing cosine similarity.
// Near-identical scores break toward the more recently created insight.
// Readers see a consistent snapshot; a concurrent Add is either fully visible
// or not at all.
func (x *Index) Query(vec []float64, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = 5
	}
	x.mu.RLock()
	results := make([]domain.SearchResult, 0, len(x.records))
	for _, r := range x.records {
		results = append(results, domain.SearchResult{
			InsightID: r.InsightID,
			Score:     cosine(vec, r.Embedding),
			Meta:      r.Meta,
		})
	}
	x.mu.RUnlock()

	const scoreEps = 1e-9
	sort.Slice(results, func(i, j int) bool {
		if math.Abs(results[i].Score-results[j].Score) > scoreEps {
			return results[i].Score > results[j].Score
		}
		return results[i].Meta.CreatedAt.After(results[j].Meta.CreatedAt)
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Rebuild re-derives the whole index from insight records, embedding each one
// afresh. Used for crash recovery and to repair insights whose indexing
// failed at capture time.
func (x *Index) Rebuild(ctx context.Context, insights []domain.Insight, emb domain.Embedder) error {
	fresh := make(map[string]domain.VectorRecord, len(insights))
	dimension := 0
	for i := range insights {
		ins := &insights[i]
		vec, err := emb.Embed(ctx, DocumentText(ins))
		if err != nil {
			return &domain.IndexError{Op: "rebuild", Err: err}
		}
		if dimension == 0 {
			dimension = len(vec)
		}
		fresh[ins.ID] = domain.VectorRecord{
			InsightID: ins.ID,
			Embedding: vec,
			Meta:      domain.VectorMeta{Title: ins.Title, Tags: ins.Tags, CreatedAt: ins.CreatedAt},
		}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.records = fresh
	x.dimension = dimension
	return x.persistLocked()
}

// DocumentText is the text an insight is embedded from: transcript and
// capsule combined, so both phrasings are searchable.
func DocumentText(ins *domain.Insight) string {
	return ins.Transcript + "\n\n" + ins.Capsule
}

func (x *Index) persistLocked() error {
	f := indexFile{Dimension: x.dimension, Records: make([]domain.VectorRecord, 0, len(x.records))}
	for _, r := range x.records {
		f.Records = append(f.Records, r)
	}
	sort.Slice(f.Records, func(i, j int) bool { return f.Records[i].InsightID < f.Records[j].InsightID })
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return &domain.IndexError{Op: "persist", Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(x.path), ".tmp-*")
	if err != nil {
		return &domain.IndexError{Op: "persist", Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &domain.IndexError{Op: "persist", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &domain.IndexError{Op: "persist", Err: err}
	}
	if err := os.Rename(tmpName, x.path); err != nil {
		os.Remove(tmpName)
		return &domain.IndexError{Op: "persist", Err: err}
	}
	return nil
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
