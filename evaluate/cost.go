package evaluate

import (
	"sort"
	"time"

	"github.com/naojsoft/qplan-core/entity"
)

// Weights holds the cost function's linear combination weights.
// Zero-valued fields are invalid; use DefaultWeights.
type Weights struct {
	Slew         float64
	Delay        float64
	FilterChange float64
	Rank         float64
	Priority     float64
}

// DefaultWeights returns the planner's standard weighting.
func DefaultWeights() Weights {
	return Weights{Rank: 0.3, Delay: 0.2, Slew: 0.2, Priority: 0.1, FilterChange: 0.3}
}

// Limits holds the normalization ceilings each penalty term clips to
// before weighting.
type Limits struct {
	MaxSlew         time.Duration
	MaxDelay        time.Duration
	MaxFilterChange time.Duration
	MaxRank         float64
}

// DefaultLimits returns the planner's standard normalization ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxSlew:         20 * time.Minute,
		MaxDelay:        10 * time.Hour,
		MaxFilterChange: 35 * time.Minute,
		MaxRank:         10,
	}
}

// Score is a candidate's weighted, normalized cost: lower is better.
type Score struct {
	Candidate *Candidate
	Value     float64
}

// ScoreCandidate computes the weighted sum of normalized penalties for c,
// under w and lim.
func ScoreCandidate(c *Candidate, w Weights, lim Limits) Score {
	pSlew := clip01(ratio(c.SlewSec, lim.MaxSlew))
	pDelay := clip01(ratio(c.DelaySec, lim.MaxDelay))
	pFilter := clip01(ratio(c.FilterChangeSec, lim.MaxFilterChange))

	rank := c.OB.Program.Rank
	if rank > lim.MaxRank {
		rank = lim.MaxRank
	}
	pRank := 1 - rank/lim.MaxRank

	value := w.Slew*pSlew + w.Delay*pDelay + w.FilterChange*pFilter + w.Rank*pRank
	return Score{Candidate: c, Value: value}
}

func ratio(d, max time.Duration) float64 {
	if max <= 0 {
		return 0
	}
	v := d
	if v > max {
		v = max
	}
	return float64(v) / float64(max)
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Comparator totally orders Candidates by Score, ascending (lower cost
// wins), with a program-priority adjustment and deterministic tie-break:
// scores are compared directly unless both candidates' OBs share a
// program, in which case each score is first incremented by
// w.Priority * ob.Priority; remaining ties break by (program id, OB id)
// for reproducibility.
type Comparator struct {
	Weights Weights
	Limits  Limits
}

// NewComparator constructs a Comparator with the given weights/limits.
func NewComparator(w Weights, lim Limits) Comparator {
	return Comparator{Weights: w, Limits: lim}
}

// Less reports whether a should sort before b (a is the better
// candidate).
func (c Comparator) Less(a, b *Candidate) bool {
	sa := ScoreCandidate(a, c.Weights, c.Limits).Value
	sb := ScoreCandidate(b, c.Weights, c.Limits).Value

	if a.OB.Program != nil && b.OB.Program != nil && a.OB.Program.Proposal == b.OB.Program.Proposal {
		sa += c.Weights.Priority * a.OB.Priority
		sb += c.Weights.Priority * b.OB.Priority
	}

	if sa != sb {
		return sa < sb
	}

	pa, pb := programID(a.OB), programID(b.OB)
	if pa != pb {
		return pa < pb
	}
	return a.OB.ID < b.OB.ID
}

// programID is the tie-break key's first component: the owning program's
// proposal id, or "" for a derived OB with no program.
func programID(ob *entity.OB) string {
	if ob.Program == nil {
		return ""
	}
	return ob.Program.Proposal
}

// Sort orders candidates in place from best to worst using c.Less.
func (c Comparator) Sort(candidates []*Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return c.Less(candidates[i], candidates[j])
	})
}
