package locator

import (
	"log/slog"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
)

// querySeq disambiguates searches started within the same millisecond.
var querySeq atomic.Uint64

// Result is the outcome of one search.
type Result struct {
	Anchors  []Point `json:"matches"`
	State    State   `json:"state"`
	Examined int     `json:"examined"` // icon offsets evaluated, (0,0) included
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithObserver attaches a step observer.
func WithObserver(o Observer) Option {
	return func(m *Matcher) { m.observer = o }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) { m.log = l }
}

// Matcher locates icons in the screen behind a ColorIndex.
type Matcher struct {
	index    *ColorIndex
	observer Observer
	log      *slog.Logger
}

// NewMatcher creates a matcher over idx.
func NewMatcher(idx *ColorIndex, opts ...Option) *Matcher {
	m := &Matcher{index: idx}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

// Locate returns every anchor where icon fully matches the screen. An empty
// result means the icon is not on screen.
func (m *Matcher) Locate(icon Icon) ([]Point, error) {
	res, err := m.Search(icon)
	if err != nil {
		return nil, err
	}
	return res.Anchors, nil
}

// Search runs the candidate narrowing and reports how it ended. The icon must
// have a non-zero width and height.
func (m *Matcher) Search(icon Icon) (Result, error) {
	if icon.Grid == nil || icon.Grid.Empty() {
		return Result{}, apperrors.New(apperrors.CodeInvalidInput, "icon has no pixels").
			WithMetadata("icon", icon.Name)
	}
	if m.index == nil {
		return Result{}, apperrors.New(apperrors.CodeInvalidInput, "matcher has no index")
	}

	start := time.Now()
	s := search{m: m, icon: icon, query: queryID(start)}
	g := icon.Grid
	final := g.width*g.height - 1

	candidates := m.index.Lookup(g.pix[0])
	if len(candidates) == 0 {
		m.log.Debug("icon not found", "icon", icon.Name, "examined", 1)
		s.emit(0, Point{}, Exhausted, nil)
		return Result{Anchors: []Point{}, State: Exhausted, Examined: 1}, nil
	}
	// filtered in place below, so detach from the index
	candidates = slices.Clone(candidates)
	if final > 0 {
		s.emit(0, Point{}, Searching, candidates)
	}

	examined := 1
	last := len(candidates)
	for x := 0; x < g.width; x++ {
		for y := 0; y < g.height; y++ {
			if x == 0 && y == 0 {
				continue
			}
			d := Point{X: x, Y: y}
			c := g.pix[y*g.width+x]
			offset := x*g.height + y
			examined++

			kept := candidates[:0]
			for _, a := range candidates {
				if m.index.Contains(c, a.Add(d)) {
					kept = append(kept, a)
				}
			}
			candidates = kept

			if len(candidates) == 0 {
				m.log.Debug("icon not found", "icon", icon.Name, "examined", examined)
				s.emit(offset, d, Exhausted, nil)
				return Result{Anchors: []Point{}, State: Exhausted, Examined: examined}, nil
			}
			if len(candidates) != last && offset != final {
				s.emit(offset, d, Searching, candidates)
				last = len(candidates)
			}
		}
	}

	m.log.Debug("locating icon took",
		"icon", icon.Name, "duration", time.Since(start), "matches", len(candidates))
	s.emit(final, Point{X: g.width - 1, Y: g.height - 1}, Complete, candidates)
	return Result{Anchors: candidates, State: Complete, Examined: examined}, nil
}

// search carries per-query state for step emission.
type search struct {
	m     *Matcher
	icon  Icon
	query string
}

// queryID is "<unix millis>-<seq>", unique within the process.
func queryID(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10) + "-" + strconv.FormatUint(querySeq.Add(1), 10)
}

// emit notifies the observer. A panicking observer is logged and ignored.
func (s *search) emit(offset int, d Point, st State, candidates []Point) {
	if s.m.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.m.log.Warn("step observer panicked", "icon", s.icon.Name, "offset", offset, "panic", r)
		}
	}()
	s.m.observer.Observe(Step{
		Query:      s.query,
		Icon:       s.icon.Name,
		Offset:     offset,
		Delta:      d,
		State:      st,
		Remaining:  len(candidates),
		Candidates: slices.Clone(candidates),
	})
}
