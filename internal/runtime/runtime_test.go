package runtime_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mind-engage/coursepack/internal/completion"
	"github.com/mind-engage/coursepack/internal/content"
	"github.com/mind-engage/coursepack/internal/game"
	"github.com/mind-engage/coursepack/internal/host"
	"github.com/mind-engage/coursepack/internal/logger"
	"github.com/mind-engage/coursepack/internal/progress"
	"github.com/mind-engage/coursepack/internal/runtime"
	"github.com/mind-engage/coursepack/internal/suspend"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)} }

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// lms is an in-memory LMS session.
type lms struct {
	values     map[string]string
	commits    int
	terminates int
}

func newLMS(values map[string]string) *lms {
	if values == nil {
		values = map[string]string{}
	}
	return &lms{values: values}
}

func (l *lms) Initialize() bool { return true }
func (l *lms) Terminate() bool  { l.terminates++; return true }
func (l *lms) Commit() bool     { l.commits++; return true }
func (l *lms) Mode() host.Mode  { return host.ModeLMS }

func (l *lms) ReadValue(key string) (string, bool) {
	v, ok := l.values[key]
	return v, ok
}

func (l *lms) WriteValue(key, value string) bool {
	l.values[key] = value
	return true
}

func tf(id string) content.Activity {
	return &content.TrueFalse{Common: content.Common{ID: id, Type: content.KindTrueFalse}, Answer: true}
}

func twoSections() *content.Document {
	return &content.Document{ID: "course-1", Title: "Course", Sections: []content.Section{
		{ID: "intro", Activities: []content.Activity{tf("a1"), tf("a2")}},
		{ID: "wrap", Activities: []content.Activity{tf("b1")}},
	}}
}

func TestDegradedHostRunsInMemory(t *testing.T) {
	r := runtime.New(twoSections(), nil)
	assert.False(t, r.Start())
	assert.Equal(t, host.ModeNone, r.Mode())

	for _, id := range []string{"a1", "a2", "b1"} {
		res, err := r.Submit(id, true)
		require.NoError(t, err)
		assert.True(t, res.Correct)
	}
	assert.True(t, r.CourseComplete())
	assert.Equal(t, 100, r.Progress())
	assert.False(t, r.Terminate())
}

func TestUseBeforeStart(t *testing.T) {
	r := runtime.New(twoSections(), nil)
	_, err := r.Submit("a1", true)
	assert.ErrorIs(t, err, runtime.ErrNotStarted)
}

func TestRestoreFromLMS(t *testing.T) {
	blob, err := suspend.Encode(suspend.State{
		Snapshot:       completion.Snapshot{Outcomes: map[string]bool{"a1": true, "a2": false}},
		CurrentSection: 1,
	})
	require.NoError(t, err)

	l := newLMS(map[string]string{host.KeySuspendData: blob})
	r := runtime.New(twoSections(), l)
	require.True(t, r.Start())

	views := r.Sections()
	require.Len(t, views, 2)
	assert.Equal(t, progress.StatusCompleted, views[0].Status)
	assert.Equal(t, progress.StatusCurrent, views[1].Status)
	assert.Equal(t, map[string]suspend.Marker{
		"a1": suspend.Correct,
		"a2": suspend.Incorrect,
	}, r.Markers())
	assert.Equal(t, 50, r.FinalScore())
	assert.Equal(t, progress.LessonIncomplete, l.values[host.KeyLessonStatus])
}

func TestCorruptSuspendDataStartsFresh(t *testing.T) {
	l := newLMS(map[string]string{host.KeySuspendData: "{not json"})
	r := runtime.New(twoSections(), l)
	require.True(t, r.Start())
	assert.Zero(t, r.Progress())
	assert.Empty(t, r.Markers())
}

func TestLMSReceivesScoreAndInteractions(t *testing.T) {
	l := newLMS(map[string]string{host.KeyMasteryScore: "80", host.KeyInteractionsN: "2"})
	r := runtime.New(twoSections(), l)
	require.True(t, r.Start())

	_, err := r.Submit("b1", true)
	assert.ErrorIs(t, err, runtime.ErrLocked)

	for _, id := range []string{"a1", "a2", "b1"} {
		_, err := r.Submit(id, "true")
		require.NoError(t, err)
	}

	assert.Equal(t, "100", l.values[host.KeyScoreRaw])
	assert.Equal(t, "0", l.values[host.KeyScoreMin])
	assert.Equal(t, "100", l.values[host.KeyScoreMax])
	assert.Equal(t, progress.LessonPassed, l.values[host.KeyLessonStatus])
	assert.Equal(t, "a1", l.values["cmi.interactions.2.id"])
	assert.Equal(t, "true-false", l.values["cmi.interactions.2.type"])
	assert.Equal(t, "correct", l.values["cmi.interactions.2.result"])
	assert.Equal(t, "b1", l.values["cmi.interactions.4.id"])
	assert.Positive(t, l.commits)

	st, errs := suspend.Decode(l.values[host.KeySuspendData])
	assert.Empty(t, errs)
	assert.ElementsMatch(t, []string{"a1", "a2", "b1"}, st.Completed)
}

func TestMasteryFailure(t *testing.T) {
	l := newLMS(map[string]string{host.KeyMasteryScore: "80"})
	r := runtime.New(twoSections(), l)
	require.True(t, r.Start())
	for _, id := range []string{"a1", "a2", "b1"} {
		_, err := r.Submit(id, id != "a2")
		require.NoError(t, err)
	}
	assert.Equal(t, "67", l.values[host.KeyScoreRaw])
	assert.Equal(t, progress.LessonFailed, l.values[host.KeyLessonStatus])
}

func TestTerminateWritesSessionOnce(t *testing.T) {
	clk := newClock()
	l := newLMS(nil)
	r := runtime.New(twoSections(), l, runtime.WithClock(clk.now))
	require.True(t, r.Start())

	clk.advance(90*time.Minute + 5*time.Second)
	assert.True(t, r.Terminate())
	assert.Equal(t, "0001:30:05.00", l.values[host.KeySessionTime])
	assert.Equal(t, "suspend", l.values[host.KeyExit])
	assert.Equal(t, 1, l.terminates)

	assert.False(t, r.Terminate())
	assert.Equal(t, 1, l.terminates)
	_, err := r.Submit("a1", true)
	assert.ErrorIs(t, err, runtime.ErrTerminated)

	st, _ := suspend.Decode(l.values[host.KeySuspendData])
	assert.Equal(t, 5405, st.TotalSeconds)
}

func TestSessionTime(t *testing.T) {
	assert.Equal(t, "0000:00:00.00", runtime.SessionTime(-time.Second))
	assert.Equal(t, "0000:00:01.50", runtime.SessionTime(1500*time.Millisecond))
	assert.Equal(t, "0100:00:00.00", runtime.SessionTime(100*time.Hour))
}

type collected struct {
	mu   sync.Mutex
	envs []host.Envelope
}

func (c *collected) emit(e host.Envelope) {
	c.mu.Lock()
	c.envs = append(c.envs, e)
	c.mu.Unlock()
}

func (c *collected) types() []host.MessageType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]host.MessageType, 0, len(c.envs))
	for _, e := range c.envs {
		out = append(out, e.Type)
	}
	return out
}

func newBridge(c *collected) *host.BridgeAdapter {
	return host.NewBridgeAdapter("pkg-1", host.FuncEmitter(c.emit), time.Now, logger.Nop())
}

func TestBridgeMessages(t *testing.T) {
	c := &collected{}
	r := runtime.New(twoSections(), newBridge(c), runtime.WithDevice(host.DeviceInfo{UserAgent: "test"}))
	require.True(t, r.Start())
	assert.Equal(t, []host.MessageType{host.MsgSuspendData, host.MsgDeviceInfo}, c.types())

	c.envs = nil
	_, err := r.Submit("a1", true)
	require.NoError(t, err)
	assert.Equal(t, []host.MessageType{host.MsgLogResponse, host.MsgSuspendData}, c.types())

	c.envs = nil
	_, err = r.Submit("a2", false)
	require.NoError(t, err)
	assert.Equal(t, []host.MessageType{
		host.MsgLogResponse, host.MsgSectionComplete, host.MsgUpdateScore, host.MsgSuspendData,
	}, c.types())

	var sc host.SectionComplete
	require.NoError(t, json.Unmarshal(c.envs[1].Payload, &sc))
	assert.Equal(t, host.SectionComplete{SectionID: "intro", Completed: true, Score: 50}, sc)

	c.envs = nil
	_, err = r.Submit("b1", true)
	require.NoError(t, err)
	assert.Contains(t, c.types(), host.MsgCourseComplete)
	for _, e := range c.envs {
		assert.Equal(t, "pkg-1", e.PackageID)
		assert.NotEmpty(t, e.ID)
	}
}

func TestBridgeRestoresInjectedState(t *testing.T) {
	blob, err := suspend.Encode(suspend.State{Snapshot: completion.Snapshot{Completed: []string{"a1", "a2"}}})
	require.NoError(t, err)
	c := &collected{}
	r := runtime.New(twoSections(), newBridge(c), runtime.WithInitialState(blob))
	require.True(t, r.Start())
	assert.Equal(t, 1, r.State().CurrentSection)
	assert.Contains(t, c.types(), host.MsgSectionComplete)
}

func TestReset(t *testing.T) {
	l := newLMS(nil)
	r := runtime.New(twoSections(), l)
	require.True(t, r.Start())
	_, err := r.Submit("a1", true)
	require.NoError(t, err)
	require.NoError(t, r.Reset())
	assert.Empty(t, r.Markers())
	assert.Zero(t, r.Progress())
	assert.Equal(t, progress.LessonIncomplete, l.values[host.KeyLessonStatus])
}

func gameCourse() *content.Document {
	qs := []content.GameQuestion{{
		ID: "q1", Prompt: "pick",
		Choices: []content.Choice{{ID: "x"}, {ID: "y", Correct: true}},
	}}
	return &content.Document{ID: "games", Title: "Games", Sections: []content.Section{
		{ID: "play", Activities: []content.Activity{
			&content.LadderGame{
				Common: content.Common{ID: "g1", Type: content.KindLadderGame},
				Game:   content.Game{Questions: qs},
			},
		}},
	}}
}

func TestGameCompletesCourse(t *testing.T) {
	c := &collected{}
	r := runtime.New(gameCourse(), newBridge(c))
	require.True(t, r.Start())

	_, err := r.Submit("g1", "y")
	assert.ErrorIs(t, err, runtime.ErrIsGame)

	g, err := r.Game("g1")
	require.NoError(t, err)
	again, err := r.Game("g1")
	require.NoError(t, err)
	assert.Same(t, g, again)

	_, err = g.Select(game.Selection{})
	assert.Error(t, err)

	require.NoError(t, g.Start())
	o, err := g.Answer("x")
	require.NoError(t, err)
	assert.False(t, o.Correct)
	assert.False(t, r.CourseComplete(), "a failed required game does not complete")

	g.PlayAgain()
	require.NoError(t, g.Start())
	_, err = g.Answer("y")
	require.NoError(t, err)

	v := g.View()
	assert.True(t, v.Ended)
	assert.True(t, v.Passed)
	assert.True(t, r.CourseComplete())
	assert.Contains(t, c.types(), host.MsgLogResponse)
	assert.Contains(t, c.types(), host.MsgCourseComplete)
}

func TestGameHandleLockedAfterReset(t *testing.T) {
	doc := &content.Document{ID: "gated", Title: "Gated", Sections: []content.Section{
		{ID: "s1", Activities: []content.Activity{
			&content.TrueFalse{Common: content.Common{ID: "a1", Type: content.KindTrueFalse}, Answer: true},
		}},
		{ID: "s2", Activities: gameCourse().Sections[0].Activities},
	}}
	r := runtime.New(doc, nil)
	require.True(t, r.Start())
	_, err := r.Submit("a1", true)
	require.NoError(t, err)

	g, err := r.Game("g1")
	require.NoError(t, err)
	require.NoError(t, r.Reset())

	_, err = r.Game("g1")
	assert.ErrorIs(t, err, runtime.ErrLocked)
	assert.ErrorIs(t, g.Start(), runtime.ErrLocked)
	_, err = g.Answer("y")
	assert.ErrorIs(t, err, runtime.ErrLocked)

	assert.Zero(t, r.Progress())
	assert.Empty(t, r.State().Completed)
	assert.Equal(t, progress.StatusLocked, r.Sections()[1].Status)
}

func TestHeartbeat(t *testing.T) {
	c := &collected{}
	r := runtime.New(twoSections(), newBridge(c), runtime.WithHeartbeatInterval(time.Millisecond))
	require.True(t, r.Start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.RunHeartbeat(ctx) }()

	assert.Eventually(t, func() bool {
		for _, typ := range c.types() {
			if typ == host.MsgHeartbeat {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
