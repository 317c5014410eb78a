// Package render turns a content document into the single HTML page that
// ships inside an exported package.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"html/template"
	"io"
	"math/rand/v2"
	"strconv"

	"github.com/mind-engage/coursepack/internal/content"
	"github.com/mind-engage/coursepack/internal/game"
	"github.com/mind-engage/coursepack/internal/progress"
	"github.com/mind-engage/coursepack/internal/suspend"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer holds the parsed templates. It is safe for concurrent use.
type Renderer struct {
	t *template.Template
}

func New() (*Renderer, error) {
	t, err := template.New("coursepack").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{t: t}, nil
}

// Must is New for package-level renderers.
func Must() *Renderer {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

var funcs = template.FuncMap{
	// authored rich text is trusted; the authoring side sanitizes it
	"trusted": func(s string) template.HTML { return template.HTML(s) },
	"level": func(n int) int {
		if n < 2 || n > 6 {
			return 2
		}
		return n
	},
	"percent": func(f float64) template.CSS {
		return template.CSS(strconv.FormatFloat(min(max(f, 0), 100), 'f', -1, 64) + "%")
	},
	"choiceSet": func(id, input string, choices []content.Choice) choiceSet {
		return choiceSet{ID: id, Input: input, Choices: choices}
	},
	"shuffledRight": func(pairs []content.Pair) []content.Pair {
		out := append([]content.Pair(nil), pairs...)
		seed := ""
		for _, p := range pairs {
			seed += p.ID
		}
		shuffle(seed, len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	},
	"shuffledSteps": func(id string, steps []content.Step) []content.Step {
		out := append([]content.Step(nil), steps...)
		shuffle(id, len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	},
	"grid": func(g *content.WordSearchGame) *game.Grid {
		eng := game.NewWordSearch(g)
		if err := eng.Start(); err != nil {
			return nil
		}
		ws, ok := eng.Strategy().(*game.WordSearch)
		if !ok {
			return nil
		}
		return ws.Grid
	},
}

type choiceSet struct {
	ID      string
	Input   string
	Choices []content.Choice
}

// shuffle is deterministic per key so repeated exports are byte-identical.
func shuffle(key string, n int, swap func(i, j int)) {
	h := fnv.New64a()
	h.Write([]byte(key))
	s := h.Sum64()
	rand.New(rand.NewPCG(s, s>>1)).Shuffle(n, swap)
}

type activityData struct {
	A content.Activity
}

// Activity renders one activity's markup.
func (r *Renderer) Activity(a content.Activity) (template.HTML, error) {
	var buf bytes.Buffer
	kind := string(a.Meta().Type)
	if r.t.Lookup(kind) == nil {
		return "", fmt.Errorf("%w: %s", content.ErrUnknownKind, kind)
	}
	if err := r.t.ExecuteTemplate(&buf, kind, activityData{A: a}); err != nil {
		return "", fmt.Errorf("render %s %s: %w", kind, a.Meta().ID, err)
	}
	return template.HTML(buf.String()), nil
}

// PageOptions carries everything besides the document that shapes a page.
type PageOptions struct {
	PackageID string
	Lang      string
	Style     string
	// Script is the runtime bundle inlined after the course data.
	Script string
	// Markers and Views reflect a restored session. Both may be nil for
	// a fresh export.
	Markers  map[string]suspend.Marker
	Views    []progress.SectionView
	Progress int
}

type pageData struct {
	PackageID   string
	Lang        string
	Title       string
	Description string
	Progress    int
	Style       template.CSS
	Script      template.JS
	Course      template.JS
	Sections    []sectionData
}

type sectionData struct {
	ID         string
	Title      string
	Status     progress.Status
	Activities []activityHTML
}

type activityHTML struct {
	ID     string
	Kind   content.Kind
	Page   int
	Marker suspend.Marker
	HTML   template.HTML
}

// Page writes the full index.html for doc.
func (r *Renderer) Page(w io.Writer, doc *content.Document, opts PageOptions) error {
	course, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode course data: %w", err)
	}
	data := pageData{
		PackageID:   opts.PackageID,
		Lang:        opts.Lang,
		Title:       doc.Title,
		Description: doc.Description,
		Progress:    opts.Progress,
		Style:       template.CSS(opts.Style),
		Script:      template.JS(opts.Script),
		Course:      template.JS(course),
	}
	for i, sec := range doc.Sections {
		sd := sectionData{ID: sec.ID, Title: sec.Title, Status: sectionStatus(i, opts.Views)}
		page := 0
		for _, a := range sec.Activities {
			h, err := r.Activity(a)
			if err != nil {
				return err
			}
			meta := a.Meta()
			ah := activityHTML{ID: meta.ID, Kind: meta.Type, Page: page, HTML: h}
			if content.IsScored(a) {
				ah.Marker = suspend.Unanswered
				if m, ok := opts.Markers[meta.ID]; ok {
					ah.Marker = m
				}
			}
			sd.Activities = append(sd.Activities, ah)
			if content.IsPageBreak(a) {
				page++
			}
		}
		data.Sections = append(data.Sections, sd)
	}
	if err := r.t.ExecuteTemplate(w, "page", data); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

// sectionStatus falls back to the initial gating when no views are given.
func sectionStatus(i int, views []progress.SectionView) progress.Status {
	if i < len(views) {
		return views[i].Status
	}
	if i == 0 {
		return progress.StatusCurrent
	}
	return progress.StatusLocked
}
