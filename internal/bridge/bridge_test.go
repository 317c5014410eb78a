package bridge_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/coursepack/internal/bridge"
	"github.com/mind-engage/coursepack/internal/content"
	"github.com/mind-engage/coursepack/internal/db"
	"github.com/mind-engage/coursepack/internal/host"
	"github.com/mind-engage/coursepack/internal/logger"
	"github.com/mind-engage/coursepack/internal/progress"
	"github.com/mind-engage/coursepack/internal/runtime"
)

var sentAt = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

func env(id string, t host.MessageType, payload any) host.Envelope {
	b, _ := json.Marshal(payload)
	return host.Envelope{ID: id, Type: t, PackageID: "pkg", Payload: b, SentAt: sentAt}
}

func stores(t *testing.T) map[string]bridge.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.Open(context.Background(), db.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return map[string]bridge.Store{
		"memory": bridge.NewMemoryStore(nil),
		"sql":    bridge.NewSQLStore(conn),
	}
}

func TestFoldAndReplay(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := bridge.NewReceiver(store, logger.Nop())

			_, err := r.InitialState(ctx, "e1")
			assert.ErrorIs(t, err, bridge.ErrNotFound)

			batch := []host.Envelope{
				env("m1", host.MsgSuspendData, host.SuspendData{Data: `{"v":1}`}),
				env("m2", host.MsgSectionComplete, host.SectionComplete{SectionID: "s1", Completed: true, Score: 100}),
				env("m3", host.MsgUpdateScore, host.UpdateScore{Score: 50}),
				env("m4", host.MsgHeartbeat, host.Heartbeat{Seconds: 90}),
				env("m5", host.MsgHeartbeat, host.Heartbeat{Seconds: 30}),
			}
			n, err := r.Receive(ctx, "e1", batch...)
			require.NoError(t, err)
			assert.Equal(t, 5, n)

			n, err = r.Receive(ctx, "e1", batch[1])
			require.NoError(t, err)
			assert.Zero(t, n, "replayed message is ignored")

			st, err := r.InitialState(ctx, "e1")
			require.NoError(t, err)
			assert.Equal(t, `{"v":1}`, st.SuspendData)
			assert.Equal(t, "pkg", st.PackageID)
			assert.Equal(t, 1, st.SectionsDone)
			assert.Equal(t, 90, st.Seconds)
			require.NotNil(t, st.Score)
			assert.Equal(t, 50, *st.Score)
			assert.Equal(t, progress.LessonIncomplete, st.LessonStatus)

			_, err = r.Receive(ctx, "e1", env("m6", host.MsgCourseComplete, host.CourseComplete{Score: 80, LessonStatus: progress.LessonPassed}))
			require.NoError(t, err)
			st, err = r.InitialState(ctx, "e1")
			require.NoError(t, err)
			assert.Equal(t, progress.LessonPassed, st.LessonStatus)

			evs, err := r.Events(ctx, "e1", 0, 0)
			require.NoError(t, err)
			require.Len(t, evs, 6)
			assert.Equal(t, "m1", evs[0].MessageID)
			assert.Equal(t, sentAt, evs[0].SentAt)

			tail, err := r.Events(ctx, "e1", evs[3].Seq, 1)
			require.NoError(t, err)
			require.Len(t, tail, 1)
			assert.Equal(t, "m5", tail[0].MessageID)
		})
	}
}

func TestReceiveRejects(t *testing.T) {
	r := bridge.NewReceiver(bridge.NewMemoryStore(nil), nil)
	ctx := context.Background()

	_, err := r.Receive(ctx, "", env("x", host.MsgHeartbeat, host.Heartbeat{}))
	assert.ErrorIs(t, err, bridge.ErrBadEnvelope)

	bad := env("m2", "TELEPORT", struct{}{})
	n, err := r.Receive(ctx, "e", env("m1", host.MsgHeartbeat, host.Heartbeat{Seconds: 1}), bad)
	assert.ErrorIs(t, err, bridge.ErrBadEnvelope)
	assert.Equal(t, 1, n)

	_, err = r.Receive(ctx, "e", host.Envelope{ID: "m3", Type: host.MsgHeartbeat, Payload: []byte("{")})
	assert.ErrorIs(t, err, bridge.ErrBadEnvelope)

	_, err = r.Receive(ctx, "e", env("m4", host.MsgUpdateScore, "not an object"))
	assert.ErrorIs(t, err, bridge.ErrBadEnvelope)
}

func TestRuntimeRoundTripThroughBridge(t *testing.T) {
	doc := &content.Document{ID: "c", Title: "c", Sections: []content.Section{
		{ID: "s1", Activities: []content.Activity{
			&content.TrueFalse{Common: content.Common{ID: "a", Type: content.KindTrueFalse}, Answer: true},
		}},
		{ID: "s2", Activities: []content.Activity{
			&content.TrueFalse{Common: content.Common{ID: "b", Type: content.KindTrueFalse}, Answer: true},
		}},
	}}
	ctx := context.Background()
	recv := bridge.NewReceiver(bridge.NewMemoryStore(nil), nil)

	first := runtime.New(doc, host.NewBridgeAdapter("c", recv.Emitter(ctx, "e1"), time.Now, nil))
	require.True(t, first.Start())
	_, err := first.Submit("a", true)
	require.NoError(t, err)
	first.Terminate()

	st, err := recv.InitialState(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.SectionsDone)

	second := runtime.New(doc, host.NewBridgeAdapter("c", recv.Emitter(ctx, "e1"), time.Now, nil),
		runtime.WithInitialState(st.SuspendData))
	require.True(t, second.Start())
	assert.Equal(t, 50, second.Progress())
	assert.Equal(t, 1, second.State().CurrentSection)
}

func TestFoldKeepsNewestAcrossReordering(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := bridge.NewReceiver(store, logger.Nop())
			at := func(e host.Envelope, d time.Duration) host.Envelope {
				e.SentAt = sentAt.Add(d)
				return e
			}

			// newer messages arrive first
			batch := []host.Envelope{
				at(env("s2", host.MsgSuspendData, host.SuspendData{Data: `{"v":1,"completed":["a1","a2"]}`}), time.Second),
				at(env("s1", host.MsgSuspendData, host.SuspendData{Data: `{"v":1,"completed":[]}`}), 0),
				at(env("u2", host.MsgUpdateScore, host.UpdateScore{Score: 90}), 2*time.Second),
				at(env("u1", host.MsgUpdateScore, host.UpdateScore{Score: 40}), 0),
				at(env("c1", host.MsgCourseComplete, host.CourseComplete{Score: 10}), time.Second),
			}
			n, err := r.Receive(ctx, "e1", batch...)
			require.NoError(t, err)
			assert.Equal(t, 5, n, "late messages are still logged")

			st, err := r.InitialState(ctx, "e1")
			require.NoError(t, err)
			assert.Equal(t, `{"v":1,"completed":["a1","a2"]}`, st.SuspendData)
			require.NotNil(t, st.Score)
			assert.Equal(t, 90, *st.Score)
			assert.Equal(t, progress.LessonCompleted, st.LessonStatus)

			_, err = r.Receive(ctx, "e1", at(env("s3", host.MsgSuspendData, host.SuspendData{Data: "newest"}), 3*time.Second))
			require.NoError(t, err)
			st, err = r.InitialState(ctx, "e1")
			require.NoError(t, err)
			assert.Equal(t, "newest", st.SuspendData)
		})
	}
}

func TestSectionsCountedOncePerID(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := bridge.NewReceiver(store, logger.Nop())
			_, err := r.Receive(ctx, "e1",
				env("m1", host.MsgSectionComplete, host.SectionComplete{SectionID: "s1", Completed: true}),
				env("m2", host.MsgSectionComplete, host.SectionComplete{SectionID: "s2", Completed: true}),
				// re-completed after a course reset
				env("m3", host.MsgSectionComplete, host.SectionComplete{SectionID: "s1", Completed: true}),
			)
			require.NoError(t, err)
			st, err := r.InitialState(ctx, "e1")
			require.NoError(t, err)
			assert.Equal(t, 2, st.SectionsDone)
			assert.Equal(t, []string{"s1", "s2"}, st.Sections)
		})
	}
}

func TestReceiveRejectsMissingSentAt(t *testing.T) {
	r := bridge.NewReceiver(bridge.NewMemoryStore(nil), nil)
	e := env("m1", host.MsgHeartbeat, host.Heartbeat{Seconds: 1})
	e.SentAt = time.Time{}
	_, err := r.Receive(context.Background(), "e", e)
	assert.ErrorIs(t, err, bridge.ErrBadEnvelope)
}
