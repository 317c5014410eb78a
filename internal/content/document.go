package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the course content produced by the authoring side. The
// runtime treats it as read-only.
type Document struct {
	ID           string    `json:"id,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	MasteryScore *int      `json:"masteryScore,omitempty"`
	Sections     []Section `json:"sections"`
}

type Section struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Order      int        `json:"order"`
	Activities []Activity `json:"-"`
}

type sectionWire struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Order      int               `json:"order"`
	Activities []json.RawMessage `json:"activities"`
}

func (s *Section) UnmarshalJSON(b []byte) error {
	var w sectionWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	s.ID, s.Title, s.Order = w.ID, w.Title, w.Order
	s.Activities = make([]Activity, 0, len(w.Activities))
	for i, raw := range w.Activities {
		a, err := DecodeActivity(raw)
		if err != nil {
			return fmt.Errorf("section %q activity %d: %w", w.ID, i, err)
		}
		s.Activities = append(s.Activities, a)
	}
	return nil
}

func (s Section) MarshalJSON() ([]byte, error) {
	acts := make([]json.RawMessage, 0, len(s.Activities))
	for _, a := range s.Activities {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		acts = append(acts, b)
	}
	return json.Marshal(sectionWire{ID: s.ID, Title: s.Title, Order: s.Order, Activities: acts})
}

// ErrUnknownKind is returned for an activity type outside the closed set.
var ErrUnknownKind = errors.New("unknown activity type")

func newActivity(k Kind) (Activity, error) {
	switch k {
	case KindText:
		return &Text{}, nil
	case KindHeading:
		return &Heading{}, nil
	case KindImage:
		return &Image{}, nil
	case KindVideo:
		return &Video{}, nil
	case KindAudio:
		return &Audio{}, nil
	case KindEmbed:
		return &Embed{}, nil
	case KindCallout:
		return &Callout{}, nil
	case KindQuote:
		return &Quote{}, nil
	case KindCode:
		return &Code{}, nil
	case KindTable:
		return &Table{}, nil
	case KindList:
		return &List{}, nil
	case KindAccordion:
		return &Accordion{}, nil
	case KindTabs:
		return &Tabs{}, nil
	case KindFlashcards:
		return &Flashcards{}, nil
	case KindTimeline:
		return &Timeline{}, nil
	case KindDivider:
		return &Divider{}, nil
	case KindSingleChoice:
		return &SingleChoice{}, nil
	case KindMultipleChoice:
		return &MultipleChoice{}, nil
	case KindTrueFalse:
		return &TrueFalse{}, nil
	case KindKnowledgeCheck:
		return &KnowledgeCheck{}, nil
	case KindFillBlank:
		return &FillBlank{}, nil
	case KindSorting:
		return &Sorting{}, nil
	case KindMatching:
		return &Matching{}, nil
	case KindSequencing:
		return &Sequencing{}, nil
	case KindProcessWalkthrough:
		return &ProcessWalkthrough{}, nil
	case KindScenario:
		return &Scenario{}, nil
	case KindHotspot:
		return &Hotspot{}, nil
	case KindLadderGame:
		return &LadderGame{}, nil
	case KindFallingBlocksGame:
		return &FallingBlocksGame{}, nil
	case KindPursuitRaceGame:
		return &PursuitRaceGame{}, nil
	case KindWordSearchGame:
		return &WordSearchGame{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
}

// DecodeActivity decodes one activity by peeking at its type field.
func DecodeActivity(raw []byte) (Activity, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	a, err := newActivity(head.Type)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, fmt.Errorf("%s: %w", head.Type, err)
	}
	return a, nil
}

// Format of a serialized document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format by file extension, defaulting to JSON.
func FormatFromPath(p string) Format {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Decode reads a document in the given format and normalizes ordering.
func Decode(r io.Reader, f Format) (*Document, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if f == FormatYAML {
		b, err = yamlToJSON(b)
		if err != nil {
			return nil, fmt.Errorf("yaml: %w", err)
		}
	}
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc.normalize()
	return &doc, nil
}

// Load reads a document from disk.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, FormatFromPath(path))
}

func yamlToJSON(b []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// normalize sorts sections and activities by their order field, keeping
// authored order for ties, and fills missing section orders.
func (d *Document) normalize() {
	sort.SliceStable(d.Sections, func(i, j int) bool { return d.Sections[i].Order < d.Sections[j].Order })
	for i := range d.Sections {
		acts := d.Sections[i].Activities
		sort.SliceStable(acts, func(x, y int) bool { return acts[x].Meta().Order < acts[y].Meta().Order })
	}
}

// Mastery returns the document mastery score, if set.
func (d *Document) Mastery() (int, bool) {
	if d.MasteryScore == nil {
		return 0, false
	}
	return *d.MasteryScore, true
}

// Validate checks the document for authoring mistakes. The runtime does
// not call it; exporters and the CLI do.
func Validate(d *Document) error {
	var errs []error
	if len(d.Sections) == 0 {
		errs = append(errs, errors.New("document has no sections"))
	}
	if m, ok := d.Mastery(); ok && (m < 0 || m > 100) {
		errs = append(errs, fmt.Errorf("masteryScore %d outside 0..100", m))
	}
	seen := map[string]bool{}
	for _, s := range d.Sections {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("section %q: id is required", s.Title))
		} else if seen[s.ID] {
			errs = append(errs, fmt.Errorf("duplicate id %q", s.ID))
		}
		seen[s.ID] = true
		for _, a := range s.Activities {
			m := a.Meta()
			if m.ID == "" {
				errs = append(errs, fmt.Errorf("section %q: %s activity without id", s.ID, m.Type))
				continue
			}
			if seen[m.ID] {
				errs = append(errs, fmt.Errorf("duplicate id %q", m.ID))
			}
			seen[m.ID] = true
			if g, ok := Settings(a); ok && g.PassMarkPercent != nil && (*g.PassMarkPercent < 0 || *g.PassMarkPercent > 100) {
				errs = append(errs, fmt.Errorf("game %q: passMarkPercent %d outside 0..100", m.ID, *g.PassMarkPercent))
			}
		}
	}
	return errors.Join(errs...)
}
