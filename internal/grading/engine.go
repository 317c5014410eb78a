package grading

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mind-engage/coursepack/internal/content"
)

// Result is the outcome of checking one learner response.
type Result struct {
	Correct  bool     // counts as a correct outcome
	Complete bool     // the activity's "done" event fired
	Credit   float64  // 0..1 partial credit, informational
	Response string   // flattened learner response for interaction logs
	Feedback []string // optional notes
}

var (
	// ErrNotGradable is returned for passive content and games, which
	// report through their own engines.
	ErrNotGradable = errors.New("activity is not gradable")
	// ErrBadResponse is returned when the response has the wrong shape.
	ErrBadResponse = errors.New("bad response shape")
)

// Strategy checks a response for one activity kind.
type Strategy interface {
	Check(a content.Activity, response any) (Result, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(a content.Activity, response any) (Result, error)

func (f StrategyFunc) Check(a content.Activity, response any) (Result, error) { return f(a, response) }

// Grader routes by activity kind to the matching Strategy.
type Grader struct {
	strategies map[content.Kind]Strategy
}

type Option func(*config)

type config struct {
	MaxEditDistance int // fuzzy fill-blank tolerance
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }

// NewGrader installs the built-in strategies.
func NewGrader(opts ...Option) *Grader {
	cfg := &config{MaxEditDistance: 1}
	for _, o := range opts {
		o(cfg)
	}
	return &Grader{
		strategies: map[content.Kind]Strategy{
			content.KindSingleChoice:       StrategyFunc(checkSingleChoice),
			content.KindMultipleChoice:     StrategyFunc(checkMultipleChoice),
			content.KindTrueFalse:          StrategyFunc(checkTrueFalse),
			content.KindKnowledgeCheck:     StrategyFunc(checkKnowledge),
			content.KindFillBlank:          fillBlankStrategy{maxEdit: cfg.MaxEditDistance},
			content.KindSorting:            StrategyFunc(checkSorting),
			content.KindMatching:           StrategyFunc(checkMatching),
			content.KindSequencing:         StrategyFunc(checkSequencing),
			content.KindProcessWalkthrough: StrategyFunc(checkWalkthrough),
			content.KindScenario:           StrategyFunc(checkScenario),
			content.KindHotspot:            StrategyFunc(checkHotspot),
		},
	}
}

// Register replaces or adds a strategy for a kind.
func (g *Grader) Register(k content.Kind, s Strategy) { g.strategies[k] = s }

func (g *Grader) Check(a content.Activity, response any) (Result, error) {
	s, ok := g.strategies[a.Meta().Type]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNotGradable, a.Meta().Type)
	}
	return s.Check(a, response)
}

// --- strategies ---

func checkSingleChoice(a content.Activity, response any) (Result, error) {
	return checkOneOf(a.(*content.SingleChoice).Choices, response)
}

func checkOneOf(choices []content.Choice, response any) (Result, error) {
	id, ok := response.(string)
	if !ok {
		return Result{}, fmt.Errorf("%w: want choice id", ErrBadResponse)
	}
	res := Result{Complete: true, Response: id}
	for _, c := range choices {
		if c.ID == id && c.Correct {
			res.Correct, res.Credit = true, 1
		}
	}
	return res, nil
}

func checkMultipleChoice(a content.Activity, response any) (Result, error) {
	q := a.(*content.MultipleChoice)
	picked, ok := toStringSlice(response)
	if !ok {
		return Result{}, fmt.Errorf("%w: want []string", ErrBadResponse)
	}
	correct := map[string]struct{}{}
	for _, c := range q.Choices {
		if c.Correct {
			correct[c.ID] = struct{}{}
		}
	}
	resp := toSet(picked)
	res := Result{Complete: true, Response: strings.Join(sorted(picked), ",")}
	if setEqual(correct, resp) {
		res.Correct, res.Credit = true, 1
		return res, nil
	}
	falsePositive := false
	hits := 0
	for r := range resp {
		if _, ok := correct[r]; ok {
			hits++
		} else {
			falsePositive = true
		}
	}
	if !falsePositive && len(correct) > 0 {
		res.Credit = float64(hits) / float64(len(correct))
	}
	return res, nil
}

func checkTrueFalse(a content.Activity, response any) (Result, error) {
	q := a.(*content.TrueFalse)
	var v bool
	switch t := response.(type) {
	case bool:
		v = t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		v = b
	default:
		return Result{}, fmt.Errorf("%w: want bool", ErrBadResponse)
	}
	res := Result{Complete: true, Response: strconv.FormatBool(v)}
	if v == q.Answer {
		res.Correct, res.Credit = true, 1
	}
	return res, nil
}

func checkKnowledge(a content.Activity, response any) (Result, error) {
	q := a.(*content.KnowledgeCheck)
	answers, ok := toStringMap(response)
	if !ok {
		return Result{}, fmt.Errorf("%w: want question->choice map", ErrBadResponse)
	}
	res := Result{Complete: true, Response: flattenMap(answers)}
	if len(q.Questions) == 0 {
		res.Correct, res.Credit = true, 1
		return res, nil
	}
	right := 0
	for _, cq := range q.Questions {
		r, err := checkOneOf(cq.Choices, answers[cq.ID])
		if err == nil && r.Correct {
			right++
		}
	}
	res.Credit = float64(right) / float64(len(q.Questions))
	res.Correct = right == len(q.Questions)
	return res, nil
}

func checkSorting(a content.Activity, response any) (Result, error) {
	q := a.(*content.Sorting)
	placed, ok := toStringMap(response)
	if !ok {
		return Result{}, fmt.Errorf("%w: want item->category map", ErrBadResponse)
	}
	expect := make(map[string]string, len(q.Items))
	for _, it := range q.Items {
		expect[it.ID] = it.CategoryID
	}
	return mapResult(expect, placed), nil
}

// checkMatching expects left pair id -> right pair id; a pair matches when
// both ids are the same pair.
func checkMatching(a content.Activity, response any) (Result, error) {
	q := a.(*content.Matching)
	picked, ok := toStringMap(response)
	if !ok {
		return Result{}, fmt.Errorf("%w: want left->right map", ErrBadResponse)
	}
	expect := make(map[string]string, len(q.Pairs))
	for _, p := range q.Pairs {
		expect[p.ID] = p.ID
	}
	return mapResult(expect, picked), nil
}

func mapResult(expect, got map[string]string) Result {
	res := Result{Complete: true, Response: flattenMap(got)}
	right := 0
	for k, v := range expect {
		if got[k] == v {
			right++
		}
	}
	if len(expect) == 0 {
		res.Correct, res.Credit = true, 1
		return res
	}
	res.Credit = float64(right) / float64(len(expect))
	res.Correct = right == len(expect) && len(got) == len(expect)
	return res
}

func checkSequencing(a content.Activity, response any) (Result, error) {
	q := a.(*content.Sequencing)
	order, ok := toStringSlice(response)
	if !ok {
		return Result{}, fmt.Errorf("%w: want ordered step ids", ErrBadResponse)
	}
	res := Result{Complete: true, Response: strings.Join(order, ",")}
	inPlace := 0
	for i, s := range q.Steps {
		if i < len(order) && order[i] == s.ID {
			inPlace++
		}
	}
	if len(q.Steps) > 0 {
		res.Credit = float64(inPlace) / float64(len(q.Steps))
	}
	res.Correct = inPlace == len(q.Steps) && len(order) == len(q.Steps)
	return res, nil
}

// checkWalkthrough completes once every step was viewed; there is no wrong
// answer.
func checkWalkthrough(a content.Activity, response any) (Result, error) {
	q := a.(*content.ProcessWalkthrough)
	viewed, ok := toStringSlice(response)
	if !ok {
		return Result{}, fmt.Errorf("%w: want viewed step ids", ErrBadResponse)
	}
	seen := toSet(viewed)
	for _, s := range q.Steps {
		if _, ok := seen[s.ID]; !ok {
			return Result{Response: strings.Join(viewed, ",")}, nil
		}
	}
	return Result{Correct: true, Complete: true, Credit: 1, Response: strings.Join(viewed, ",")}, nil
}

func checkScenario(a content.Activity, response any) (Result, error) {
	q := a.(*content.Scenario)
	id, ok := response.(string)
	if !ok {
		return Result{}, fmt.Errorf("%w: want option id", ErrBadResponse)
	}
	res := Result{Complete: true, Response: id}
	for _, o := range q.Options {
		if o.ID != id {
			continue
		}
		if o.Correct {
			res.Correct, res.Credit = true, 1
		}
		if o.Feedback != "" {
			res.Feedback = append(res.Feedback, o.Feedback)
		}
	}
	return res, nil
}

// checkHotspot accepts one spot id or a set; the set of correct spots must
// match exactly.
func checkHotspot(a content.Activity, response any) (Result, error) {
	q := a.(*content.Hotspot)
	var picked []string
	if s, ok := response.(string); ok {
		picked = []string{s}
	} else if arr, ok := toStringSlice(response); ok {
		picked = arr
	} else {
		return Result{}, fmt.Errorf("%w: want spot id(s)", ErrBadResponse)
	}
	correct := map[string]struct{}{}
	for _, s := range q.Spots {
		if s.Correct {
			correct[s.ID] = struct{}{}
		}
	}
	res := Result{Complete: true, Response: strings.Join(sorted(picked), ",")}
	if setEqual(correct, toSet(picked)) {
		res.Correct, res.Credit = true, 1
	}
	return res, nil
}

type fillBlankStrategy struct{ maxEdit int }

// Check compares normalized text; answers may carry numeric tolerances
// (see numeric.go). Fuzzy blanks accept a close match within maxEdit.
func (s fillBlankStrategy) Check(a content.Activity, response any) (Result, error) {
	q := a.(*content.FillBlank)
	resp, ok := response.(string)
	if !ok {
		return Result{}, fmt.Errorf("%w: want string", ErrBadResponse)
	}
	res := Result{Complete: true, Response: resp}
	if numericMatch(resp, q.Answers) {
		res.Correct, res.Credit = true, 1
		return res, nil
	}
	normResp := normalize(resp)
	for _, k := range q.Answers {
		if isToleranceKey(k) {
			continue
		}
		nk := normalize(k)
		if nk == normResp {
			res.Correct, res.Credit = true, 1
			return res, nil
		}
		if q.Fuzzy && s.maxEdit > 0 && levenshtein(nk, normResp) <= s.maxEdit {
			res.Correct, res.Credit = true, 1
			res.Feedback = append(res.Feedback, "close match (fuzzy)")
			return res, nil
		}
	}
	return res, nil
}

// helpers

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func toStringMap(v any) (map[string]string, bool) {
	switch t := v.(type) {
	case map[string]string:
		return t, true
	case map[string]any:
		out := make(map[string]string, len(t))
		for k, e := range t {
			if s, ok := e.(string); ok {
				out[k] = s
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func flattenMap(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"."+m[k])
	}
	return strings.Join(parts, ",")
}
