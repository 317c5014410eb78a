package runtime

import (
	"fmt"

	"github.com/mind-engage/coursepack/internal/content"
	"github.com/mind-engage/coursepack/internal/grading"
	"github.com/mind-engage/coursepack/internal/host"
)

// interactionType maps an activity kind to a SCORM 1.2 interaction type.
func interactionType(k content.Kind) string {
	switch k {
	case content.KindTrueFalse:
		return "true-false"
	case content.KindFillBlank:
		return "fill-in"
	case content.KindMatching:
		return "matching"
	case content.KindSequencing, content.KindSorting:
		return "sequencing"
	case content.KindHotspot:
		return "performance"
	case content.KindSingleChoice, content.KindMultipleChoice, content.KindKnowledgeCheck,
		content.KindScenario, content.KindProcessWalkthrough:
		return "choice"
	}
	return "other"
}

// writeInteraction appends one cmi.interactions.n record. Only an LMS
// keeps interactions; other hosts drop the writes.
func (r *Runtime) writeInteraction(a content.Activity, res grading.Result) {
	if !r.hostOK || r.host.Mode() != host.ModeLMS {
		return
	}
	meta := a.Meta()
	n := r.interactions
	key := func(f string) string { return fmt.Sprintf("cmi.interactions.%d.%s", n, f) }
	result := "wrong"
	if res.Correct {
		result = "correct"
	}
	r.host.WriteValue(key("id"), meta.ID)
	r.host.WriteValue(key("type"), interactionType(meta.Type))
	r.host.WriteValue(key("student_response"), truncate(res.Response, 255))
	r.host.WriteValue(key("result"), result)
	r.interactions++
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
