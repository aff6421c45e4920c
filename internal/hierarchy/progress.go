package hierarchy

import "time"

// Stage identifies the rebuild phase a progress report belongs to.
type Stage string

// Rebuild stages in order.
const (
	StageFetchingLeaves Stage = "fetching_leaves"
	StageMergingLevel   Stage = "merging_level"
	StageFinalizing     Stage = "finalizing"
	StageDone           Stage = "done"
)

// Progress is one rebuild progress report.
type Progress struct {
	Stage          Stage         `json:"stage"`
	Level          int           `json:"level"`
	ProcessedPairs int64         `json:"processed_pairs"`
	TotalPairs     int64         `json:"total_pairs"`
	Unions         int           `json:"unions"`
	Fraction       float64       `json:"fraction"`
	ETA            time.Duration `json:"eta"`
}

// ProgressFunc receives throttled progress reports during a rebuild.
type ProgressFunc func(Progress)

// progressInterval bounds how often pairwise-loop progress is emitted so a
// caller can render a progress bar without being flooded.
const progressInterval = 200 * time.Millisecond

// reporter throttles progress emission by wall clock. Stage transitions and
// the final report always go through.
type reporter struct {
	fn       ProgressFunc
	started  time.Time
	lastEmit time.Time
	last     Progress
}

func newReporter(fn ProgressFunc) *reporter {
	return &reporter{fn: fn, started: time.Now()}
}

// emit sends a report when forced, on stage change, or when the throttle
// interval has elapsed.
func (r *reporter) emit(p Progress, force bool) {
	if r.fn == nil {
		return
	}
	now := time.Now()
	if !force && p.Stage == r.last.Stage && now.Sub(r.lastEmit) < progressInterval {
		return
	}

	if p.ProcessedPairs > 0 && p.TotalPairs > p.ProcessedPairs {
		elapsed := now.Sub(r.started)
		perPair := elapsed / time.Duration(p.ProcessedPairs)
		p.ETA = perPair * time.Duration(p.TotalPairs-p.ProcessedPairs)
	}

	r.last = p
	r.lastEmit = now
	r.fn(p)
}
