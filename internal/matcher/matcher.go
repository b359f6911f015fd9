package matcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/intellego/platform/internal/apperror"
	"github.com/intellego/platform/internal/model"
)

const (
	DefaultThreshold        = 90.0
	DefaultPreviewThreshold = 70.0
)

var ErrNotFound = fmt.Errorf("no matching student: %w", apperror.ErrNotFound)

// Context restricts the pool. Empty fields match any student.
type Context struct {
	Subject      string
	Division     string
	AcademicYear string
	Campus       string
}

func (c Context) allows(s model.Student) bool {
	if c.Division != "" && !strings.EqualFold(s.Division, c.Division) {
		return false
	}
	if c.AcademicYear != "" && s.AcademicYear != c.AcademicYear {
		return false
	}
	if c.Campus != "" && !strings.EqualFold(s.Campus, c.Campus) {
		return false
	}
	if c.Subject != "" && !s.IsEnrolled(c.Subject) {
		return false
	}
	return true
}

// Config tunes acceptance. MinMargin > 0 additionally requires the best
// score to beat the runner-up by at least that many points.
type Config struct {
	Threshold float64
	MinMargin float64
}

func ProductionConfig() Config { return Config{Threshold: DefaultThreshold} }

func PreviewConfig() Config { return Config{Threshold: DefaultPreviewThreshold} }

type Result struct {
	Student    model.Student
	Surname    string
	Confidence float64
	RunnerUp   float64
	// Ambiguous is set when another candidate scored the same; the earlier
	// enrolled student wins, which is not guaranteed to be correct.
	Ambiguous bool
}

type LowConfidenceError struct {
	Best      Result
	Threshold float64
	Reason    string
}

func (e *LowConfidenceError) Error() string {
	return fmt.Sprintf("best match %q for %q scored %.1f (threshold %.1f): %s",
		e.Best.Student.Name, e.Best.Surname, e.Best.Confidence, e.Threshold, e.Reason)
}

func (e *LowConfidenceError) Unwrap() error {
	return apperror.ErrLowConfidence
}

// AsLowConfidence extracts the best candidate from a low-confidence error.
func AsLowConfidence(err error) (*LowConfidenceError, bool) {
	var lc *LowConfidenceError
	ok := errors.As(err, &lc)
	return lc, ok
}

type Matcher struct {
	cfg Config
}

func New(cfg Config) *Matcher {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	return &Matcher{cfg: cfg}
}

func (m *Matcher) Config() Config {
	return m.cfg
}

// Match binds filename to one student of pool. It never touches storage.
func (m *Matcher) Match(filename string, ctx Context, pool []model.Student) (Result, error) {
	surname := ExtractSurname(filename)
	return m.MatchSurname(surname, ctx, pool)
}

func (m *Matcher) MatchSurname(surname string, ctx Context, pool []model.Student) (Result, error) {
	var (
		best    Result
		found   bool
		second  float64
		hasNext bool
	)
	for _, s := range pool {
		if !ctx.allows(s) {
			continue
		}
		score := Score(surname, s.Name)
		switch {
		case !found:
			best = Result{Student: s, Surname: surname, Confidence: score}
			found = true
		case score > best.Confidence:
			second, hasNext = best.Confidence, true
			best = Result{Student: s, Surname: surname, Confidence: score}
		case score > second || !hasNext:
			second, hasNext = score, true
		}
	}

	if !found || best.Confidence == 0 {
		return Result{}, ErrNotFound
	}
	if hasNext {
		best.RunnerUp = second
		best.Ambiguous = second == best.Confidence
	}

	if best.Confidence < m.cfg.Threshold {
		return best, &LowConfidenceError{Best: best, Threshold: m.cfg.Threshold, Reason: "below threshold"}
	}
	if m.cfg.MinMargin > 0 && hasNext && best.Confidence-second < m.cfg.MinMargin {
		return best, &LowConfidenceError{Best: best, Threshold: m.cfg.Threshold,
			Reason: fmt.Sprintf("runner-up within %.1f points", m.cfg.MinMargin)}
	}
	return best, nil
}

// Score is the best word-overlap percentage between surname and the
// surname-like parts of fullName ("Apellido, Nombre" or "Nombre Apellido").
func Score(surname, fullName string) float64 {
	want := strings.Fields(Normalize(surname))
	if len(want) == 0 {
		return 0
	}
	best := 0.0
	for _, variant := range nameVariants(fullName) {
		if s := overlap(want, variant); s > best {
			best = s
		}
	}
	return best
}

func nameVariants(fullName string) [][]string {
	var variants [][]string
	if head, _, ok := strings.Cut(fullName, ","); ok {
		if words := strings.Fields(Normalize(head)); len(words) > 0 {
			variants = append(variants, words)
		}
	} else {
		words := strings.Fields(Normalize(fullName))
		if n := len(words); n >= 2 {
			variants = append(variants,
				words[n-1:], words[n-2:],
				words[:1], words[:2],
			)
		}
	}
	if words := strings.Fields(Normalize(fullName)); len(words) > 0 {
		variants = append(variants, words)
	}
	return variants
}

// overlap is |a ∩ b| / max(|a|, |b|) as a percentage.
func overlap(a, b []string) float64 {
	set := make(map[string]struct{}, len(b))
	for _, w := range b {
		set[w] = struct{}{}
	}
	common := 0
	for _, w := range a {
		if _, ok := set[w]; ok {
			common++
			delete(set, w)
		}
	}
	denom := max(len(a), len(b))
	return float64(common) / float64(denom) * 100
}
