package game

import (
	"math/rand/v2"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/mind-engage/coursepack/internal/content"
)

const (
	MinGridSize    = 10
	MaxGridSize    = 20
	placeAttempts  = 200
	letterPoints   = 10
	fillerAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Cell is a grid coordinate.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Selection is a word search turn: a straight line from Start to End.
type Selection struct {
	Start Cell `json:"start"`
	End   Cell `json:"end"`
}

// Placement records where a word was hidden.
type Placement struct {
	QuestionID string
	Word       string
	Start      Cell
	Dir        Cell
}

// Grid is a square letter grid.
type Grid struct {
	Size       int
	Cells      [][]rune
	Placements []Placement
}

func (g *Grid) String() string {
	var b strings.Builder
	for _, row := range g.Cells {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// Line reads the letters from a to b, which must be in one row, column or
// diagonal.
func (g *Grid) Line(a, b Cell) (string, bool) {
	dr, dc := sign(b.Row-a.Row), sign(b.Col-a.Col)
	n := max(abs(b.Row-a.Row), abs(b.Col-a.Col))
	if (a.Row != b.Row && a.Col != b.Col && abs(b.Row-a.Row) != abs(b.Col-a.Col)) || !g.inside(a) || !g.inside(b) {
		return "", false
	}
	out := make([]rune, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, g.Cells[a.Row+i*dr][a.Col+i*dc])
	}
	return string(out), true
}

func (g *Grid) inside(c Cell) bool {
	return c.Row >= 0 && c.Col >= 0 && c.Row < g.Size && c.Col < g.Size
}

// directions are the eight straight lines through a cell.
var directions = []Cell{
	{0, 1}, {1, 0}, {1, 1}, {-1, 1},
	{0, -1}, {-1, 0}, {-1, -1}, {1, -1},
}

// WordOf normalizes an answer into grid letters. Spaces and hyphens are
// dropped; anything else that is not a letter makes it unusable.
func WordOf(answer string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.ToUpper(answer) {
		switch {
		case r == ' ' || r == '-':
		case unicode.IsLetter(r):
			b.WriteRune(r)
		default:
			return "", false
		}
	}
	w := b.String()
	return w, len([]rune(w)) >= 2
}

// GenerateGrid hides each question's answer in a size x size grid. The
// same seed always yields the same grid. Words that cannot be placed are
// left out of the returned placements.
func GenerateGrid(questions []content.GameQuestion, size int, seed int64) *Grid {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	g := &Grid{Size: size, Cells: make([][]rune, size)}
	for i := range g.Cells {
		g.Cells[i] = make([]rune, size)
	}

	type entry struct {
		id   string
		word []rune
	}
	var words []entry
	seen := map[string]bool{}
	for _, q := range questions {
		if w, ok := WordOf(q.Answer); ok && len([]rune(w)) <= size && !seen[w] {
			seen[w] = true
			words = append(words, entry{q.ID, []rune(w)})
		}
	}
	// longest first packs better; ties keep document order
	slices.SortStableFunc(words, func(a, b entry) int { return len(b.word) - len(a.word) })

	for _, w := range words {
		for range placeAttempts {
			d := directions[rng.IntN(len(directions))]
			start := Cell{rng.IntN(size), rng.IntN(size)}
			if g.fits(w.word, start, d) {
				for i, r := range w.word {
					g.Cells[start.Row+i*d.Row][start.Col+i*d.Col] = r
				}
				g.Placements = append(g.Placements, Placement{QuestionID: w.id, Word: string(w.word), Start: start, Dir: d})
				break
			}
		}
	}

	for _, row := range g.Cells {
		for c := range row {
			if row[c] == 0 {
				row[c] = rune(fillerAlphabet[rng.IntN(len(fillerAlphabet))])
			}
		}
	}
	return g
}

func (g *Grid) fits(word []rune, start, d Cell) bool {
	end := Cell{start.Row + (len(word)-1)*d.Row, start.Col + (len(word)-1)*d.Col}
	if !g.inside(start) || !g.inside(end) {
		return false
	}
	for i, r := range word {
		cur := g.Cells[start.Row+i*d.Row][start.Col+i*d.Col]
		if cur != 0 && cur != r {
			return false
		}
	}
	return true
}

// WordSearch is played against a single clock over the whole grid. A turn
// is correct when the selected line spells a word not found yet, in either
// reading direction.
type WordSearch struct {
	size  int
	seed  int64
	total time.Duration

	Grid  *Grid
	Found map[string]bool
	words map[string]string // word -> question ID
}

func NewWordSearch(g *content.WordSearchGame, opts ...Option) *Engine[Selection] {
	ws := &WordSearch{size: g.GridSize, seed: g.Seed, total: time.Duration(g.TimeLimitSec) * time.Second}
	return NewEngine[Selection](g.ID, g.Game, ws, opts...)
}

func (w *WordSearch) Valid(q content.GameQuestion) bool {
	_, ok := WordOf(q.Answer)
	return ok
}

func (w *WordSearch) gridSize(qs []content.GameQuestion) int {
	size := w.size
	if size <= 0 {
		size = MinGridSize
		for _, q := range qs {
			word, _ := WordOf(q.Answer)
			size = max(size, len([]rune(word)))
		}
	}
	return min(size, MaxGridSize)
}

// Start builds the grid and drops questions whose word did not fit.
func (w *WordSearch) Start(s *Session) {
	w.Grid = GenerateGrid(s.Questions, w.gridSize(s.Questions), w.seed)
	w.Found = map[string]bool{}
	w.words = map[string]string{}
	placed := map[string]bool{}
	for _, p := range w.Grid.Placements {
		placed[p.QuestionID] = true
		w.words[p.Word] = p.QuestionID
	}
	kept := s.Questions[:0]
	for _, q := range s.Questions {
		if placed[q.ID] {
			kept = append(kept, q)
		}
	}
	s.Questions = kept
}

// Next offers the first clue not found yet.
func (w *WordSearch) Next(s *Session) (content.GameQuestion, bool) {
	for _, q := range s.Questions {
		if !w.Found[q.ID] {
			return q, true
		}
	}
	return content.GameQuestion{}, false
}

func (w *WordSearch) Resolve(_ *Session, sel Selection) Outcome {
	line, ok := w.Grid.Line(sel.Start, sel.End)
	if !ok {
		return Outcome{}
	}
	for _, cand := range []string{line, reverse(line)} {
		if id, hit := w.words[cand]; hit && !w.Found[id] {
			w.Found[id] = true
			return Outcome{QuestionID: id, Selected: cand, Correct: true, Points: letterPoints * len([]rune(cand))}
		}
	}
	return Outcome{Selected: line}
}

// Timeout is unused: word search has no per-question clock.
func (w *WordSearch) Timeout(*Session) Outcome { return Outcome{TimedOut: true} }

func (w *WordSearch) Over(s *Session) (bool, bool) {
	return len(w.Found) >= len(s.Questions), s.Correct >= s.Threshold
}

func (w *WordSearch) QuestionTime(*Session) time.Duration { return 0 }

func (w *WordSearch) TotalTime(*Session) time.Duration { return w.total }

func reverse(s string) string {
	r := []rune(s)
	slices.Reverse(r)
	return string(r)
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
