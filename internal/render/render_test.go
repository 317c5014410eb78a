package render_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/coursepack/internal/content"
	"github.com/mind-engage/coursepack/internal/progress"
	"github.com/mind-engage/coursepack/internal/render"
	"github.com/mind-engage/coursepack/internal/suspend"
)

func course() *content.Document {
	return &content.Document{ID: "c1", Title: "Go <Basics>", Sections: []content.Section{
		{ID: "s1", Title: "Start", Activities: []content.Activity{
			&content.Text{Common: content.Common{ID: "t1", Type: content.KindText}, HTML: "<p><b>hello</b></p>"},
			&content.SingleChoice{
				Common:   content.Common{ID: "q1", Type: content.KindSingleChoice},
				Question: "Pick one",
				Choices:  []content.Choice{{ID: "a", Text: "A"}, {ID: "b", Text: "B", Correct: true}},
			},
			&content.Divider{Common: content.Common{ID: "d1", Type: content.KindDivider}, PageBreak: true},
			&content.TrueFalse{Common: content.Common{ID: "q2", Type: content.KindTrueFalse}, Statement: "Go has generics"},
		}},
		{ID: "s2", Title: "Play", Activities: []content.Activity{
			&content.WordSearchGame{
				Common:   content.Common{ID: "ws", Type: content.KindWordSearchGame},
				Game:     content.Game{Questions: []content.GameQuestion{{ID: "w", Prompt: "mascot", Answer: "gopher"}}},
				GridSize: 10,
				Seed:     1,
			},
		}},
	}}
}

func TestPage(t *testing.T) {
	r, err := render.New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Page(&buf, course(), render.PageOptions{
		PackageID: "pkg-1",
		Script:    "window.coursepack = {};",
		Markers:   map[string]suspend.Marker{"q1": suspend.Correct},
	}))
	out := buf.String()

	assert.Contains(t, out, "<title>Go &lt;Basics&gt;</title>")
	assert.Contains(t, out, "<p><b>hello</b></p>", "authored HTML is kept")
	assert.Contains(t, out, `data-id="q1" data-kind="single_choice" data-marker="correct"`)
	assert.Contains(t, out, `data-id="q2" data-kind="true_false" data-marker="unanswered" data-page="1"`)
	assert.Contains(t, out, `data-divider="d1"`)
	assert.Contains(t, out, `<section id="s2" class="cp-section cp-status-locked" hidden>`)
	assert.Contains(t, out, `<script type="application/json" id="course-data">{"id":"c1"`)
	assert.Contains(t, out, "window.coursepack = {};")
	assert.Equal(t, 10, strings.Count(out[strings.Index(out, `class="cp-grid"`):], "<tr>"))
}

func TestPageUsesViews(t *testing.T) {
	views := []progress.SectionView{{Status: progress.StatusCompleted}, {Status: progress.StatusCurrent}}
	markers := suspend.Markers(map[string]bool{"q1": true, "ws": false})
	var buf bytes.Buffer
	require.NoError(t, render.Must().Page(&buf, course(), render.PageOptions{Views: views, Markers: markers}))
	assert.Contains(t, buf.String(), `<section id="s1" class="cp-section cp-status-completed">`)
	assert.Contains(t, buf.String(), `<section id="s2" class="cp-section cp-status-current">`)
	assert.Contains(t, buf.String(), `data-id="ws" data-kind="word_search_game" data-marker="incorrect"`)

	buf.Reset()
	require.NoError(t, render.Must().Page(&buf, course(), render.PageOptions{}))
	assert.Contains(t, buf.String(), `data-id="ws" data-kind="word_search_game" data-marker="unanswered"`)
	assert.NotContains(t, buf.String(), `data-id="t1" data-kind="text" data-marker`)
}

func TestExportsAreStable(t *testing.T) {
	doc := course()
	doc.Sections[0].Activities = append(doc.Sections[0].Activities, &content.Matching{
		Common: content.Common{ID: "m", Type: content.KindMatching},
		Pairs:  []content.Pair{{ID: "1", Left: "a", Right: "A"}, {ID: "2", Left: "b", Right: "B"}, {ID: "3", Left: "c", Right: "C"}},
	})
	var a, b bytes.Buffer
	require.NoError(t, render.Must().Page(&a, doc, render.PageOptions{}))
	require.NoError(t, render.Must().Page(&b, doc, render.PageOptions{}))
	assert.Equal(t, a.String(), b.String())
}

func TestUnknownKind(t *testing.T) {
	_, err := render.Must().Activity(&content.Text{Common: content.Common{ID: "x", Type: "hologram"}})
	assert.ErrorIs(t, err, content.ErrUnknownKind)
}

func TestEveryKindRenders(t *testing.T) {
	r := render.Must()
	acts := []content.Activity{
		&content.Heading{Common: content.Common{ID: "h", Type: content.KindHeading}, Text: "H", Level: 3},
		&content.Image{Common: content.Common{ID: "i", Type: content.KindImage}, Src: "a.png"},
		&content.Video{Common: content.Common{ID: "v", Type: content.KindVideo}, Src: "a.mp4"},
		&content.Audio{Common: content.Common{ID: "au", Type: content.KindAudio}, Src: "a.mp3"},
		&content.Embed{Common: content.Common{ID: "e", Type: content.KindEmbed}, URL: "https://example.com"},
		&content.Callout{Common: content.Common{ID: "c", Type: content.KindCallout}, Text: "!"},
		&content.Quote{Common: content.Common{ID: "qu", Type: content.KindQuote}, Text: "q"},
		&content.Code{Common: content.Common{ID: "co", Type: content.KindCode}, Source: "x := 1"},
		&content.Table{Common: content.Common{ID: "ta", Type: content.KindTable}, Rows: [][]string{{"1"}}},
		&content.List{Common: content.Common{ID: "l", Type: content.KindList}, Items: []string{"a"}},
		&content.Accordion{Common: content.Common{ID: "ac", Type: content.KindAccordion}, Items: []content.Panel{{Title: "t"}}},
		&content.Tabs{Common: content.Common{ID: "tb", Type: content.KindTabs}, Items: []content.Panel{{Title: "t"}}},
		&content.Flashcards{Common: content.Common{ID: "f", Type: content.KindFlashcards}, Cards: []content.Card{{Front: "f"}}},
		&content.Timeline{Common: content.Common{ID: "tl", Type: content.KindTimeline}, Events: []content.TimelineEvent{{Date: "2020"}}},
		&content.MultipleChoice{Common: content.Common{ID: "mc", Type: content.KindMultipleChoice}, Choices: []content.Choice{{ID: "a"}}},
		&content.KnowledgeCheck{Common: content.Common{ID: "kc", Type: content.KindKnowledgeCheck}, Questions: []content.CheckQuestion{{ID: "k1"}}},
		&content.FillBlank{Common: content.Common{ID: "fb", Type: content.KindFillBlank}, Prompt: "p"},
		&content.Sorting{Common: content.Common{ID: "so", Type: content.KindSorting}, Items: []content.SortItem{{ID: "x"}}},
		&content.Sequencing{Common: content.Common{ID: "sq", Type: content.KindSequencing}, Steps: []content.Step{{ID: "1"}}},
		&content.ProcessWalkthrough{Common: content.Common{ID: "pw", Type: content.KindProcessWalkthrough}, Steps: []content.Step{{ID: "1"}, {ID: "2"}}},
		&content.Scenario{Common: content.Common{ID: "sc", Type: content.KindScenario}, Options: []content.ScenarioOption{{ID: "o"}}},
		&content.Hotspot{Common: content.Common{ID: "hs", Type: content.KindHotspot}, Spots: []content.Spot{{ID: "s", X: 25, Y: 150}}},
		&content.LadderGame{Common: content.Common{ID: "lg", Type: content.KindLadderGame}},
		&content.FallingBlocksGame{Common: content.Common{ID: "fg", Type: content.KindFallingBlocksGame}},
		&content.PursuitRaceGame{Common: content.Common{ID: "pg", Type: content.KindPursuitRaceGame}},
	}
	for _, a := range acts {
		h, err := r.Activity(a)
		require.NoError(t, err, a.Meta().Type)
		assert.NotEmpty(t, h, a.Meta().Type)
	}
	h, err := r.Activity(acts[len(acts)-4])
	require.NoError(t, err)
	assert.Contains(t, string(h), "left:25%;top:100%")
}
