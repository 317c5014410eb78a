package suspend

// Marker is the answered state a renderer shows for a trackable activity.
type Marker string

const (
	Unanswered Marker = "unanswered"
	Correct    Marker = "correct"
	Incorrect  Marker = "incorrect"
)

// MarkerFor derives the marker from recorded outcomes alone, so a restored
// page can show answers without replaying the interaction.
func MarkerFor(outcomes map[string]bool, activityID string) Marker {
	passed, ok := outcomes[activityID]
	switch {
	case !ok:
		return Unanswered
	case passed:
		return Correct
	default:
		return Incorrect
	}
}

func Markers(outcomes map[string]bool) map[string]Marker {
	out := make(map[string]Marker, len(outcomes))
	for id := range outcomes {
		out[id] = MarkerFor(outcomes, id)
	}
	return out
}
