package recommend

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/FACorreiaa/go-eat-today/internal/types"
)

// DefaultCount is used when the requested count is not positive.
const DefaultCount = 5

var ErrNoCandidates = errors.New("no candidates to recommend from")

// Matcher decides whether a category path matches a user supplied term.
type Matcher int

const (
	// MatchSubstring is a plain case-sensitive substring test.
	MatchSubstring Matcher = iota
	// MatchSegment compares the term against each `>` separated segment of
	// the category path. Segments listing alternatives ("카페,디저트") are
	// split on commas as well.
	MatchSegment
)

func ParseMatcher(s string) (Matcher, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "substring":
		return MatchSubstring, nil
	case "segment":
		return MatchSegment, nil
	}
	return 0, fmt.Errorf("unknown category match mode %q", s)
}

func (m Matcher) String() string {
	if m == MatchSegment {
		return "segment"
	}
	return "substring"
}

// Match reports whether term matches category.
func (m Matcher) Match(category, term string) bool {
	if m != MatchSegment {
		return strings.Contains(category, term)
	}
	for _, segment := range strings.Split(category, ">") {
		for _, sub := range strings.Split(segment, ",") {
			if strings.TrimSpace(sub) == term {
				return true
			}
		}
	}
	return false
}

// FallbackPolicy selects the pool used when the include term filters out
// every candidate.
type FallbackPolicy int

const (
	// FallbackAll recommends from the full unfiltered candidate list.
	FallbackAll FallbackPolicy = iota
	// FallbackExcludeOnly keeps the exclude filter and drops only the include term.
	FallbackExcludeOnly
)

func ParseFallback(s string) (FallbackPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FallbackAll, nil
	case "exclude_only":
		return FallbackExcludeOnly, nil
	}
	return 0, fmt.Errorf("unknown fallback policy %q", s)
}

func (f FallbackPolicy) String() string {
	if f == FallbackExcludeOnly {
		return "exclude_only"
	}
	return "all"
}

// ParseCriteria normalizes raw form input. exclude is a comma separated list.
func ParseCriteria(include, exclude string) types.FilterCriteria {
	c := types.FilterCriteria{Include: strings.TrimSpace(include)}
	for _, term := range strings.Split(exclude, ",") {
		if term = strings.TrimSpace(term); term != "" {
			c.Exclude = append(c.Exclude, term)
		}
	}
	return c
}

// PickResult is the outcome of a single spin.
type PickResult struct {
	Places       []types.Place `json:"places"`
	FallbackUsed bool          `json:"fallback_used"`
	Notice       *types.Notice `json:"notice,omitempty"`
	// Eligible is the size of the pool the picks were drawn from.
	Eligible int `json:"eligible"`
}

type Option func(*Picker)

func WithMatcher(m Matcher) Option {
	return func(p *Picker) { p.matcher = m }
}

func WithFallback(f FallbackPolicy) Option {
	return func(p *Picker) { p.fallback = f }
}

// WithRand makes the shuffle deterministic. The source is guarded by the
// picker so it may be shared across goroutines.
func WithRand(r *rand.Rand) Option {
	return func(p *Picker) { p.rng = r }
}

type Picker struct {
	matcher  Matcher
	fallback FallbackPolicy

	mu  sync.Mutex
	rng *rand.Rand
}

func NewPicker(opts ...Option) *Picker {
	p := &Picker{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Picker) Matcher() Matcher { return p.matcher }

func (p *Picker) Fallback() FallbackPolicy { return p.fallback }

// Filter returns the candidates whose category matches none of the exclude
// terms and, when set, matches the include term. The input is not modified.
func (p *Picker) Filter(candidates []types.Place, criteria types.FilterCriteria) []types.Place {
	return p.filter(candidates, criteria.Include, criteria.Exclude)
}

func (p *Picker) filter(candidates []types.Place, include string, exclude []string) []types.Place {
	out := make([]types.Place, 0, len(candidates))
	for _, c := range candidates {
		if p.excluded(c.CategoryName, exclude) {
			continue
		}
		if include != "" && !p.matcher.Match(c.CategoryName, include) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (p *Picker) excluded(category string, terms []string) bool {
	for _, t := range terms {
		if t != "" && p.matcher.Match(category, t) {
			return true
		}
	}
	return false
}

// Pick filters candidates, falls back when the include term matched
// nothing, and returns up to count uniformly shuffled places.
func (p *Picker) Pick(candidates []types.Place, criteria types.FilterCriteria, count int) (*PickResult, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	if count <= 0 {
		count = DefaultCount
	}
	include := strings.TrimSpace(criteria.Include)

	res := &PickResult{}
	pool := p.filter(candidates, include, criteria.Exclude)
	if len(pool) == 0 && include != "" {
		res.FallbackUsed = true
		res.Notice = types.NoticeIncludeFallback(include).Ptr()
		switch p.fallback {
		case FallbackExcludeOnly:
			pool = p.filter(candidates, "", criteria.Exclude)
		default:
			pool = append([]types.Place(nil), candidates...)
		}
	}

	p.shuffle(pool)
	res.Eligible = len(pool)
	res.Places = pool[:min(count, len(pool))]
	return res, nil
}

// shuffle is an in-place Fisher-Yates shuffle.
func (p *Picker) shuffle(places []types.Place) {
	swap := func(i, j int) { places[i], places[j] = places[j], places[i] }
	if p.rng == nil {
		rand.Shuffle(len(places), swap)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rng.Shuffle(len(places), swap)
}
