// Package suspend encodes the resumable session into the single string the
// host persists as suspend data, and decodes it back defensively.
package suspend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mind-engage/coursepack/internal/completion"
	"github.com/mind-engage/coursepack/internal/progress"
)

// Version is written as "v" in every blob.
const Version = 1

// MaxLength is the suspend data limit of the SCORM 1.2 data model, in
// characters. Longer blobs are still written; hosts may truncate them.
const MaxLength = 4096

var ErrMalformed = errors.New("malformed suspend data")

// State is everything a reload needs. A nil Sections slice means section
// records start from defaults.
type State struct {
	completion.Snapshot
	CurrentSection int
	Sections       []progress.SectionRecord
	TotalSeconds   int
}

// FieldError reports one field that fell back to its default.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return fmt.Sprintf("suspend field %q: %v", e.Field, e.Err) }

func (e *FieldError) Unwrap() error { return e.Err }

type wire struct {
	V              int                      `json:"v"`
	Completed      []string                 `json:"completed"`
	Outcomes       map[string]bool          `json:"outcomes"`
	CurrentSection int                      `json:"currentSection"`
	Sections       []progress.SectionRecord `json:"sections"`
	Dividers       []string                 `json:"dividers"`
	GameScores     map[string]int           `json:"gameScores"`
	TotalSeconds   int                      `json:"totalSeconds"`
}

func Encode(s State) (string, error) {
	w := wire{
		V:              Version,
		Completed:      nonNil(s.Completed),
		Outcomes:       s.Outcomes,
		CurrentSection: s.CurrentSection,
		Sections:       s.Sections,
		Dividers:       nonNil(s.Dividers),
		GameScores:     s.Scores,
		TotalSeconds:   s.TotalSeconds,
	}
	if w.Outcomes == nil {
		w.Outcomes = map[string]bool{}
	}
	if w.GameScores == nil {
		w.GameScores = map[string]int{}
	}
	if w.Sections == nil {
		w.Sections = []progress.SectionRecord{}
	}
	b, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("encode suspend data: %w", err)
	}
	return string(b), nil
}

// Oversize reports whether blob exceeds MaxLength characters.
func Oversize(blob string) bool { return utf8.RuneCountInString(blob) > MaxLength }

// Decode never fails outright. Every field is decoded on its own, and a
// field that cannot be read keeps its default and adds an error to the
// returned list. Empty input is a first launch and reports nothing.
func Decode(blob string) (State, []error) {
	var st State
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return st, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return st, []error{fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	var errs []error
	field := func(name string, dst any) {
		msg, ok := raw[name]
		if !ok || string(msg) == "null" {
			return
		}
		if err := json.Unmarshal(msg, dst); err != nil {
			errs = append(errs, &FieldError{Field: name, Err: err})
		}
	}

	var v int
	field("v", &v)
	if v > Version {
		errs = append(errs, &FieldError{Field: "v", Err: fmt.Errorf("newer version %d", v)})
	}

	var completed []string
	field("completed", &completed)
	st.Completed = filterEmpty(completed)

	st.Outcomes = decodeOutcomes(raw["outcomes"], &errs)

	var cur int
	field("currentSection", &cur)
	if cur < 0 {
		errs = append(errs, &FieldError{Field: "currentSection", Err: fmt.Errorf("negative index %d", cur)})
		cur = 0
	}
	st.CurrentSection = cur

	st.Sections = decodeSections(raw["sections"], &errs)

	var dividers []string
	field("dividers", &dividers)
	st.Dividers = filterEmpty(dividers)

	var scores map[string]int
	field("gameScores", &scores)
	st.Scores = scores

	var secs int
	field("totalSeconds", &secs)
	st.TotalSeconds = max(secs, 0)

	return st, errs
}

// decodeOutcomes keeps every well-formed entry of the outcomes object.
func decodeOutcomes(msg json.RawMessage, errs *[]error) map[string]bool {
	out := map[string]bool{}
	if len(msg) == 0 || string(msg) == "null" {
		return out
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(msg, &entries); err != nil {
		*errs = append(*errs, &FieldError{Field: "outcomes", Err: err})
		return out
	}
	for id, v := range entries {
		var passed bool
		if err := json.Unmarshal(v, &passed); err != nil || id == "" {
			*errs = append(*errs, &FieldError{Field: "outcomes." + id, Err: fmt.Errorf("%w: %s", ErrMalformed, v)})
			continue
		}
		out[id] = passed
	}
	return out
}

// decodeSections keeps the position of every record; a bad record becomes
// a zero record so later indices stay aligned.
func decodeSections(msg json.RawMessage, errs *[]error) []progress.SectionRecord {
	if len(msg) == 0 || string(msg) == "null" {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(msg, &entries); err != nil {
		*errs = append(*errs, &FieldError{Field: "sections", Err: err})
		return nil
	}
	out := make([]progress.SectionRecord, len(entries))
	for i, e := range entries {
		if err := json.Unmarshal(e, &out[i]); err != nil {
			*errs = append(*errs, &FieldError{Field: fmt.Sprintf("sections[%d]", i), Err: err})
			out[i] = progress.SectionRecord{}
		}
		out[i].MaxPageIndex = max(out[i].MaxPageIndex, 0)
	}
	return out
}

func filterEmpty(ids []string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
