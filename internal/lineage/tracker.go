// Package lineage records which source datasets and which execution
// produced every derived dataset.
package lineage

import (
	"time"

	"go-dataset-engine/internal/model"
	"go-dataset-engine/internal/store"
)

// Tracker is an append-only edge log. Cycles cannot occur: steps are
// strictly ordered and datasets are immutable once created, so an edge
// always points from a newer dataset to older ones.
type Tracker struct {
	store *store.Store
}

// NewTracker builds a tracker over the given store.
func NewTracker(st *store.Store) *Tracker {
	return &Tracker{store: st}
}

// Record appends one edge.
func (t *Tracker) Record(edge model.LineageEdge) error {
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now().UTC()
	}
	return t.store.AppendLineageEdge(edge)
}

// DirectProducers returns the edges that directly produced datasetID.
func (t *Tracker) DirectProducers(datasetID string) ([]model.LineageEdge, error) {
	return t.store.LineageEdgesFor(datasetID)
}

// AncestorsOf walks the edge graph transitively from datasetID and returns
// every edge on a path to it, breadth-first, nearest ancestors first.
func (t *Tracker) AncestorsOf(datasetID string) ([]model.LineageEdge, error) {
	var out []model.LineageEdge
	visited := map[string]bool{datasetID: true}
	frontier := []string{datasetID}

	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			edges, err := t.store.LineageEdgesFor(id)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				out = append(out, e)
				if !visited[e.SourceDatasetID] {
					visited[e.SourceDatasetID] = true
					next = append(next, e.SourceDatasetID)
				}
			}
		}
		frontier = next
	}
	return out, nil
}
