package content

// Kind is the discriminator stored in every activity's "type" field.
type Kind string

// Passive content.
const (
	KindText       Kind = "text"
	KindHeading    Kind = "heading"
	KindImage      Kind = "image"
	KindVideo      Kind = "video"
	KindAudio      Kind = "audio"
	KindEmbed      Kind = "embed"
	KindCallout    Kind = "callout"
	KindQuote      Kind = "quote"
	KindCode       Kind = "code"
	KindTable      Kind = "table"
	KindList       Kind = "list"
	KindAccordion  Kind = "accordion"
	KindTabs       Kind = "tabs"
	KindFlashcards Kind = "flashcards"
	KindTimeline   Kind = "timeline"
	KindDivider    Kind = "divider"
)

// Trackable interactions.
const (
	KindSingleChoice       Kind = "single_choice"
	KindMultipleChoice     Kind = "multiple_choice"
	KindTrueFalse          Kind = "true_false"
	KindKnowledgeCheck     Kind = "knowledge_check"
	KindFillBlank          Kind = "fill_blank"
	KindSorting            Kind = "sorting"
	KindMatching           Kind = "matching"
	KindSequencing         Kind = "sequencing"
	KindProcessWalkthrough Kind = "process_walkthrough"
	KindScenario           Kind = "scenario"
	KindHotspot            Kind = "hotspot"
)

// Games.
const (
	KindLadderGame        Kind = "ladder_game"
	KindFallingBlocksGame Kind = "falling_blocks_game"
	KindPursuitRaceGame   Kind = "pursuit_race_game"
	KindWordSearchGame    Kind = "word_search_game"
)

// Activity is the closed set of activity kinds. Only types in this package
// can implement it.
type Activity interface {
	Meta() Common
	activity()
}

// Common is shared by every activity variant.
type Common struct {
	ID       string `json:"id"`
	Type     Kind   `json:"type"`
	Order    int    `json:"order"`
	Required *bool  `json:"required,omitempty"`
}

func (c Common) Meta() Common { return c }
func (Common) activity()      {}

// ---- passive ----

type Text struct {
	Common
	HTML string `json:"html"`
}

type Heading struct {
	Common
	Text  string `json:"text"`
	Level int    `json:"level,omitempty"`
}

type Image struct {
	Common
	Src     string `json:"src"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type Video struct {
	Common
	Src     string `json:"src"`
	Poster  string `json:"poster,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type Audio struct {
	Common
	Src        string `json:"src"`
	Transcript string `json:"transcript,omitempty"`
}

type Embed struct {
	Common
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

type Callout struct {
	Common
	Variant string `json:"variant,omitempty"` // info|warning|tip
	Text    string `json:"text"`
}

type Quote struct {
	Common
	Text        string `json:"text"`
	Attribution string `json:"attribution,omitempty"`
}

type Code struct {
	Common
	Language string `json:"language,omitempty"`
	Source   string `json:"source"`
}

type Table struct {
	Common
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows"`
}

type List struct {
	Common
	Ordered bool     `json:"ordered,omitempty"`
	Items   []string `json:"items"`
}

type Panel struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type Accordion struct {
	Common
	Items []Panel `json:"items"`
}

type Tabs struct {
	Common
	Items []Panel `json:"items"`
}

type Card struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type Flashcards struct {
	Common
	Cards []Card `json:"cards"`
}

type TimelineEvent struct {
	Date  string `json:"date"`
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

type Timeline struct {
	Common
	Events []TimelineEvent `json:"events"`
}

// Divider separates content. With PageBreak set it becomes a "continue"
// page turn and counts as one progress unit.
type Divider struct {
	Common
	PageBreak bool   `json:"pageBreak,omitempty"`
	Label     string `json:"label,omitempty"`
}

// ---- trackable ----

type Choice struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

type SingleChoice struct {
	Common
	Question string   `json:"question"`
	Choices  []Choice `json:"choices"`
	Feedback string   `json:"feedback,omitempty"`
}

type MultipleChoice struct {
	Common
	Question string   `json:"question"`
	Choices  []Choice `json:"choices"`
	Feedback string   `json:"feedback,omitempty"`
}

type TrueFalse struct {
	Common
	Statement string `json:"statement"`
	Answer    bool   `json:"answer"`
}

type CheckQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Choices  []Choice `json:"choices"`
}

// KnowledgeCheck is a short run of single-answer questions; it passes only
// when every question is answered correctly.
type KnowledgeCheck struct {
	Common
	Questions []CheckQuestion `json:"questions"`
}

type FillBlank struct {
	Common
	Prompt  string   `json:"prompt"`
	Answers []string `json:"answers"`
	Fuzzy   bool     `json:"fuzzy,omitempty"`
}

type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type SortItem struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	CategoryID string `json:"categoryId"`
}

type Sorting struct {
	Common
	Categories []Category `json:"categories"`
	Items      []SortItem `json:"items"`
}

type Pair struct {
	ID    string `json:"id"`
	Left  string `json:"left"`
	Right string `json:"right"`
}

type Matching struct {
	Common
	Pairs []Pair `json:"pairs"`
}

type Step struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Sequencing expects Steps back in the authored order.
type Sequencing struct {
	Common
	Prompt string `json:"prompt,omitempty"`
	Steps  []Step `json:"steps"`
}

// ProcessWalkthrough is satisfied once every step has been viewed.
type ProcessWalkthrough struct {
	Common
	Title string `json:"title,omitempty"`
	Steps []Step `json:"steps"`
}

type ScenarioOption struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Correct  bool   `json:"correct,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

type Scenario struct {
	Common
	Prompt  string           `json:"prompt"`
	Options []ScenarioOption `json:"options"`
}

type Spot struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Correct bool    `json:"correct,omitempty"`
}

type Hotspot struct {
	Common
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
	Spots  []Spot `json:"spots"`
}

// ---- games ----

// GameQuestion is one turn of a game. Choice games use Choices; the word
// search uses Answer as the hidden word.
type GameQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Choices []Choice `json:"choices,omitempty"`
	Answer  string   `json:"answer,omitempty"`
}

// Game holds the settings shared by all game kinds.
type Game struct {
	Title           string         `json:"title,omitempty"`
	PassMarkPercent *int           `json:"passMarkPercent,omitempty"`
	TimeLimitSec    int            `json:"timeLimitSec,omitempty"`
	Lives           int            `json:"lives,omitempty"`
	Questions       []GameQuestion `json:"questions"`
}

type LadderGame struct {
	Common
	Game
}

type FallingBlocksGame struct {
	Common
	Game
	StackLimit int `json:"stackLimit,omitempty"`
}

type PursuitRaceGame struct {
	Common
	Game
	HeadStart int `json:"headStart,omitempty"`
}

type WordSearchGame struct {
	Common
	Game
	GridSize int   `json:"gridSize,omitempty"`
	Seed     int64 `json:"seed,omitempty"`
}

// DefaultPassMarkPercent applies when a game omits passMarkPercent.
const DefaultPassMarkPercent = 60

// Settings returns the shared game block of a game activity.
func Settings(a Activity) (Game, bool) {
	switch g := a.(type) {
	case *LadderGame:
		return g.Game, true
	case *FallingBlocksGame:
		return g.Game, true
	case *PursuitRaceGame:
		return g.Game, true
	case *WordSearchGame:
		return g.Game, true
	}
	return Game{}, false
}

// PassMark returns the pass mark with the default applied. An explicit 0
// is kept: such a game passes whatever the score.
func (g Game) PassMark() int {
	if g.PassMarkPercent == nil {
		return DefaultPassMarkPercent
	}
	return *g.PassMarkPercent
}
