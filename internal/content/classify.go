package content

import "fmt"

// Class groups activity kinds by how the runtime tracks them.
type Class int

const (
	ClassPassive Class = iota
	ClassTrackable
	ClassGame
)

// Classify maps every variant to its tracking class. The switch is
// exhaustive over the sealed Activity set.
func Classify(a Activity) Class {
	switch a.(type) {
	case *Text, *Heading, *Image, *Video, *Audio, *Embed, *Callout, *Quote,
		*Code, *Table, *List, *Accordion, *Tabs, *Flashcards, *Timeline, *Divider:
		return ClassPassive
	case *SingleChoice, *MultipleChoice, *TrueFalse, *KnowledgeCheck, *FillBlank,
		*Sorting, *Matching, *Sequencing, *ProcessWalkthrough, *Scenario, *Hotspot:
		return ClassTrackable
	case *LadderGame, *FallingBlocksGame, *PursuitRaceGame, *WordSearchGame:
		return ClassGame
	default:
		panic(fmt.Sprintf("content: unclassified activity %T", a))
	}
}

// IsRequired reports whether an activity blocks section completion.
// Passive content never does; trackable activities and games do unless
// marked required:false.
func IsRequired(a Activity) bool {
	if Classify(a) == ClassPassive {
		return false
	}
	r := a.Meta().Required
	return r == nil || *r
}

// RequiresPass reports whether only a passing outcome completes the
// activity. This is the case for required games.
func RequiresPass(a Activity) bool {
	return Classify(a) == ClassGame && IsRequired(a)
}

// IsScored reports whether the activity's outcome feeds the final score.
func IsScored(a Activity) bool {
	return Classify(a) != ClassPassive
}

// IsPageBreak reports whether a is a page-turn divider.
func IsPageBreak(a Activity) bool {
	d, ok := a.(*Divider)
	return ok && d.PageBreak
}
