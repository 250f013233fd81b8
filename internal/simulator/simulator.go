// Package simulator projects, day by day, how many more qualifying trading
// days a stock can absorb before one of the exchange's escalation tracks
// forces a disposal period.
package simulator

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/M1229012/Stock-V116-sub000/internal/clause"
	apperrors "github.com/M1229012/Stock-V116-sub000/internal/errors"
	"github.com/M1229012/Stock-V116-sub000/internal/exclusion"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

const component = "simulator"

// DefaultWindowSize is the number of trading days fed to the simulator.
const DefaultWindowSize = 30

// SentinelDays is reported when no finite estimate exists.
const SentinelDays = math.MaxInt32

// Status classifies a simulation outcome.
type Status int

const (
	// StatusEstimated means a finite number of further qualifying days is needed.
	StatusEstimated Status = iota
	// StatusTriggered means a track threshold is already met on the evaluation date.
	StatusTriggered
	// StatusNotSimulable means the latest day is a special-risk day.
	StatusNotSimulable
	// StatusUnreachable means the window holds no qualifying day at all.
	StatusUnreachable
)

func (s Status) String() string {
	switch s {
	case StatusEstimated:
		return "estimated"
	case StatusTriggered:
		return "triggered"
	case StatusNotSimulable:
		return "not_simulable"
	case StatusUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name in JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Day is one trading day of the simulation window.
type Day struct {
	Date    time.Time
	Bit     bool // valid accumulation day, already exclusion-filtered
	Clauses clause.ClauseSet
}

// Input is everything needed to simulate one stock.
type Input struct {
	Stock      string
	EvalDate   time.Time
	Window     []Day // ascending; last day is EvalDate
	Exclusions *exclusion.Map
	SafeHarbor bool
}

// TrackEstimate is the outcome of one track.
type TrackEstimate struct {
	Track   Track `json:"track"`
	Current int   `json:"current"` // qualifying days inside the track's trailing window
	Needed  int   `json:"needed"`  // additional qualifying days until threshold
}

// Result is the simulator's verdict for one stock.
type Result struct {
	Status    Status          `json:"status"`
	Days      int             `json:"days"` // SentinelDays unless Status is Estimated or Triggered
	Reason    string          `json:"reason"`
	Track     *Track          `json:"track,omitempty"`
	Estimates []TrackEstimate `json:"estimates,omitempty"`
	Extended  bool            `json:"extended"` // a length-extending clause appears in the window
}

// Finite reports whether Days is a real estimate.
func (r Result) Finite() bool {
	return r.Status == StatusEstimated || r.Status == StatusTriggered
}

// Simulator evaluates a fixed set of tracks over a fixed-size window.
type Simulator struct {
	tracks     []Track
	rules      *clause.Rules
	windowSize int
	logger     *slog.Logger
}

// New creates a simulator. Every track must fit inside windowSize.
func New(tracks []Track, rules *clause.Rules, windowSize int, logger *slog.Logger) (*Simulator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		rules = clause.DefaultRules()
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("at least one track is required")
	}
	for _, t := range tracks {
		if err := t.Validate(windowSize); err != nil {
			return nil, err
		}
	}

	owned := make([]Track, len(tracks))
	copy(owned, tracks)
	return &Simulator{
		tracks:     owned,
		rules:      rules,
		windowSize: windowSize,
		logger:     logger.With(slog.String("component", component)),
	}, nil
}

// WindowSize returns the expected window length.
func (s *Simulator) WindowSize() int { return s.windowSize }

// Tracks returns a copy of the configured tracks.
func (s *Simulator) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// Simulate estimates the number of further qualifying days before disposal.
func (s *Simulator) Simulate(in Input) (Result, error) {
	if err := s.validate(in); err != nil {
		return Result{}, err
	}

	last := in.Window[len(in.Window)-1]
	clauseDays := make([]clause.ClauseSet, len(in.Window))
	for i, d := range in.Window {
		clauseDays[i] = d.Clauses
	}
	extended := s.rules.HasLengthExtendingClause(clauseDays)

	if s.rules.IsSpecialRiskDay(last.Clauses) {
		return Result{
			Status:   StatusNotSimulable,
			Days:     SentinelDays,
			Reason:   fmt.Sprintf("%s 特殊風險(%s)，需人工審查，無法模擬", domain.DateKey(last.Date), last.Clauses),
			Extended: extended,
		}, nil
	}

	bits := EffectiveBits(in)
	if countTrue(bits) == 0 {
		return Result{
			Status:   StatusUnreachable,
			Days:     SentinelDays,
			Reason:   fmt.Sprintf("近%d日無有效累積", s.windowSize),
			Extended: extended,
		}, nil
	}

	estimates := make([]TrackEstimate, len(s.tracks))
	best := -1
	for i, t := range s.tracks {
		needed, current := t.estimate(bits)
		estimates[i] = TrackEstimate{Track: t, Current: current, Needed: needed}
		if best < 0 || preferred(estimates[i], estimates[best]) {
			best = i
		}
	}

	chosen := estimates[best]
	track := chosen.Track
	res := Result{
		Status:    StatusEstimated,
		Days:      chosen.Needed,
		Track:     &track,
		Estimates: estimates,
		Extended:  extended,
	}
	if chosen.Needed == 0 {
		res.Status = StatusTriggered
	}
	res.Reason = s.reason(chosen, extended)

	s.logger.Debug("simulated disposal horizon",
		slog.String("stock", in.Stock),
		slog.String("eval_date", domain.DateKey(in.EvalDate)),
		slog.String("status", res.Status.String()),
		slog.Int("days", res.Days),
		slog.String("track", track.Name))
	return res, nil
}

// preferred reports whether a beats b: fewer days first, then the stricter
// (larger threshold, then larger window) track. Declaration order breaks
// remaining ties because the first seen is kept.
func preferred(a, b TrackEstimate) bool {
	if a.Needed != b.Needed {
		return a.Needed < b.Needed
	}
	if a.Track.Threshold != b.Track.Threshold {
		return a.Track.Threshold > b.Track.Threshold
	}
	return a.Track.Window > b.Track.Window
}

func (s *Simulator) reason(e TrackEstimate, extended bool) string {
	var b strings.Builder
	b.WriteString(e.Track.Name)
	if e.Needed == 0 {
		b.WriteString("：已達處置門檻(")
		b.WriteString(strconv.Itoa(e.Current))
		b.WriteString("/")
		b.WriteString(strconv.Itoa(e.Track.Threshold))
		b.WriteString(")")
	} else {
		fmt.Fprintf(&b, "：已累積%d日，再%d日達處置門檻", e.Current, e.Needed)
	}
	if extended {
		ids := s.rules.ExtendingIDs()
		labels := make([]string, len(ids))
		for i, id := range ids {
			labels[i] = "第" + strconv.Itoa(id) + "款"
		}
		fmt.Fprintf(&b, "（含%s，處置期間加長）", strings.Join(labels, "、"))
	}
	return b.String()
}

// EffectiveBits returns the accumulation bits the simulation counts: the
// window bits minus excluded days, and with safe harbor enabled minus every
// day on or before the most recent excluded day.
func EffectiveBits(in Input) []bool {
	bits := make([]bool, len(in.Window))
	for i, d := range in.Window {
		bits[i] = d.Bit && !in.Exclusions.IsExcluded(in.Stock, d.Date)
	}
	if !in.SafeHarbor {
		return bits
	}

	released, ok := in.Exclusions.LastExcludedOnOrBefore(in.Stock, in.EvalDate)
	if !ok {
		return bits
	}
	for i, d := range in.Window {
		if !domain.Day(d.Date).After(released) {
			bits[i] = false
		}
	}
	return bits
}

func (s *Simulator) validate(in Input) error {
	if len(in.Window) != s.windowSize {
		return apperrors.NewContractError(component,
			fmt.Sprintf("window for %s has %d days, want %d", in.Stock, len(in.Window), s.windowSize))
	}
	for i := 1; i < len(in.Window); i++ {
		if !domain.Day(in.Window[i].Date).After(domain.Day(in.Window[i-1].Date)) {
			return apperrors.NewContractError(component,
				fmt.Sprintf("window for %s not ascending at index %d", in.Stock, i))
		}
	}
	last := domain.Day(in.Window[len(in.Window)-1].Date)
	if !last.Equal(domain.Day(in.EvalDate)) {
		return apperrors.NewContractError(component,
			fmt.Sprintf("window for %s ends %s, evaluation date is %s",
				in.Stock, domain.DateKey(last), domain.DateKey(in.EvalDate)))
	}
	return nil
}
