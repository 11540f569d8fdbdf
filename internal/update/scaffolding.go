package update

import (
	"math"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/state"
)

// #region agency
// agencyByLevel maps task-density level to learner agency. Level 1 is full
// learner autonomy, level 5 is AI-dominant.
var agencyByLevel = map[int]int{1: 100, 2: 75, 3: 50, 4: 25, 5: 0}

// neutralAgency is used when no task-density band was asserted.
const neutralAgency = 50

// AgencyScore returns the agency of a task-density band id such as "TD2".
func AgencyScore(tdBand string) int {
	if score, ok := agencyByLevel[rubric.Level(tdBand)]; ok {
		return score
	}
	return neutralAgency
}

// #endregion agency

// #region trend
const (
	trendWindow     = 4
	trendThreshold  = 15.0
	minAdviceSample = 3
)

// Advice strings injected into the next system prompt.
const (
	AdviceFading             = "Critical dependency: the learner relies on you for most of the work. Fade support now: ask the learner to take the next step themselves and hold back worked solutions."
	AdviceReduceSupport      = "Agency is falling. Reduce support: give shorter hints and return the initiative to the learner."
	AdviceIncreaseComplexity = "The learner works autonomously. Increase complexity: pose a harder transfer question or remove scaffolds."
)

// TrendOf computes the scaffolding state from history. The last entry is the
// current turn.
func TrendOf(history []state.HistoryEntry) state.ScaffoldingState {
	scores := make([]int, len(history))
	for i, h := range history {
		scores[i] = h.AgencyScore
	}
	return Trend(scores)
}

// Trend compares the mean of the first two against the mean of the last two
// scores in the trailing window of four. Advice needs at least three samples.
func Trend(scores []int) state.ScaffoldingState {
	if len(scores) > trendWindow {
		scores = scores[len(scores)-trendWindow:]
	}
	n := len(scores)
	if n == 0 {
		return state.ScaffoldingState{Trend: state.TrendStable}
	}

	pair := 2
	if n < pair {
		pair = n
	}
	early := mean(scores[:pair])
	late := mean(scores[n-pair:])
	avg := mean(scores)

	out := state.ScaffoldingState{
		Trend:   state.TrendStable,
		Average: math.Round(avg*10) / 10,
		Samples: n,
	}
	switch diff := late - early; {
	case diff > trendThreshold:
		out.Trend = state.TrendRising
	case diff < -trendThreshold:
		out.Trend = state.TrendFalling
	}

	if n >= minAdviceSample {
		switch {
		case avg < 30:
			out.Advice = AdviceFading
		case out.Trend == state.TrendFalling && avg < 50:
			out.Advice = AdviceReduceSupport
		case out.Trend == state.TrendRising && avg > 80:
			out.Advice = AdviceIncreaseComplexity
		}
	}
	return out
}

func mean(xs []int) float64 {
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

// #endregion trend
