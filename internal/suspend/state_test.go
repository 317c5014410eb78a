package suspend_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/coursepack/internal/completion"
	"github.com/mind-engage/coursepack/internal/progress"
	"github.com/mind-engage/coursepack/internal/suspend"
)

func TestRoundTrip(t *testing.T) {
	at := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	in := suspend.State{
		Snapshot: completion.Snapshot{
			Completed: []string{"a1", "a2"},
			Outcomes:  map[string]bool{"a1": true, "a2": false},
			Dividers:  []string{"d1"},
			Scores:    map[string]int{"g1": 420},
		},
		CurrentSection: 1,
		Sections: []progress.SectionRecord{
			{Completed: true, Unlocked: true, MaxPageIndex: 1, CompletedAt: &at},
			{Unlocked: true},
		},
		TotalSeconds: 95,
	}
	blob, err := suspend.Encode(in)
	require.NoError(t, err)
	assert.False(t, suspend.Oversize(blob))

	out, errs := suspend.Decode(blob)
	require.Empty(t, errs)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeEmptyIsDefault(t *testing.T) {
	st, errs := suspend.Decode("  ")
	assert.Empty(t, errs)
	assert.Zero(t, st.CurrentSection)
	assert.Nil(t, st.Sections)
}

func TestDecodeGarbage(t *testing.T) {
	st, errs := suspend.Decode("{not json")
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], suspend.ErrMalformed))
	assert.Zero(t, st.CurrentSection)
}

func TestDecodeFieldByField(t *testing.T) {
	blob := `{"v":1,"completed":"oops","outcomes":{"a1":true,"a2":"maybe"},
	"currentSection":-4,"sections":[{"completed":true,"unlocked":true},42],"totalSeconds":12}`
	st, errs := suspend.Decode(blob)

	var fields []string
	for _, e := range errs {
		var fe *suspend.FieldError
		require.True(t, errors.As(e, &fe), e.Error())
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"completed", "outcomes.a2", "currentSection", "sections[1]"}, fields)

	assert.Equal(t, map[string]bool{"a1": true}, st.Outcomes)
	assert.Zero(t, st.CurrentSection)
	require.Len(t, st.Sections, 2)
	assert.True(t, st.Sections[0].Completed)
	assert.Equal(t, progress.SectionRecord{}, st.Sections[1])
	assert.Equal(t, 12, st.TotalSeconds)
}

func TestOversize(t *testing.T) {
	assert.True(t, suspend.Oversize(strings.Repeat("x", suspend.MaxLength+1)))
	assert.False(t, suspend.Oversize(strings.Repeat("é", suspend.MaxLength)))
}

func TestMarkers(t *testing.T) {
	outcomes := map[string]bool{"a1": true, "a2": false}
	assert.Equal(t, suspend.Correct, suspend.MarkerFor(outcomes, "a1"))
	assert.Equal(t, suspend.Incorrect, suspend.MarkerFor(outcomes, "a2"))
	assert.Equal(t, suspend.Unanswered, suspend.MarkerFor(outcomes, "a3"))
	assert.Len(t, suspend.Markers(outcomes), 2)
}
