package update

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/gate"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/state"
)

// #region update-function
// Update is a pure function that derives the next learner state from the
// previous one and a finalized analysis. prev is never mutated. Every call
// yields a new version (the turn counter always advances); the decision is
// "no_op" when the turn asserted no bands.
func Update(prev state.LearnerState, in UpdateInput, cat *rubric.Catalog) UpdateResult {
	next := prev.Clone()
	if next.CurrentBands == nil {
		next.CurrentBands = map[string]string{}
	}

	// 1. Latest-wins merge of asserted bands into their dimensions
	var metrics Metrics
	hit := map[string]bool{}
	for _, id := range in.Analysis.AllBands() {
		dim, ok := cat.DimensionOf(id)
		if !ok {
			metrics.Skipped = append(metrics.Skipped, id)
			continue
		}
		next.CurrentBands[dim] = id
		hit[dim] = true
	}
	for dim := range hit {
		metrics.DimensionsHit = append(metrics.DimensionsHit, dim)
	}
	sort.Strings(metrics.DimensionsHit)

	// 2. Append history entry, evict past the cap
	_, tdBand := gate.MaxLevel(in.Analysis, rubric.DimTaskDensity)
	agency := AgencyScore(tdBand)
	metrics.AgencyScore = agency

	next.Turn = prev.Turn + 1
	next.History = append(next.History, state.HistoryEntry{
		Turn:        next.Turn,
		Bands:       in.Analysis.AllBands(),
		SRL:         string(in.Analysis.SRLState),
		AgencyScore: agency,
		Timestamp:   in.Now,
	})
	limit := in.HistoryCap
	if limit <= 0 {
		limit = state.MaxHistory
	}
	if over := len(next.History) - limit; over > 0 {
		metrics.Evicted = over
		next.History = append([]state.HistoryEntry(nil), next.History[over:]...)
	}

	// 3. Derived scaffolding and telemetry
	next.Scaffolding = TrendOf(next.History)
	next.Mechanical = in.Mechanical
	next.ParentID = prev.VersionID
	next.VersionID = uuid.New().String()
	next.CreatedAt = in.Now

	decision := Decision{Action: "commit", Reason: fmt.Sprintf("%d dimension(s) updated", len(metrics.DimensionsHit))}
	if len(hit) == 0 {
		decision = Decision{Action: "no_op", Reason: "no bands asserted"}
	}

	return UpdateResult{NewState: next, Decision: decision, Metrics: metrics}
}

// #endregion update-function
