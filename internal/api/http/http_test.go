package http_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	nethttp "net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "github.com/mind-engage/coursepack/internal/api/http"
	authmw "github.com/mind-engage/coursepack/internal/auth/middleware"
	"github.com/mind-engage/coursepack/internal/bridge"
	"github.com/mind-engage/coursepack/internal/catalog"
	"github.com/mind-engage/coursepack/internal/host"
	"github.com/mind-engage/coursepack/internal/logger"
	"github.com/mind-engage/coursepack/internal/storage"
)

const yamlDoc = `
id: intro
title: Intro
masteryScore: 60
sections:
  - id: s1
    title: One
    activities:
      - id: q1
        type: true_false
        statement: Water is wet
        answer: true
`

type fixture struct {
	srv   *httptest.Server
	store *catalog.MemoryStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	blobs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	store := catalog.NewMemoryStore()
	pub := &catalog.Publisher{Store: store, Blobs: blobs, Log: logger.Nop()}
	rcv := bridge.NewReceiver(bridge.NewMemoryStore(nil), logger.Nop())

	r := chi.NewRouter()
	r.Use(func(next nethttp.Handler) nethttp.Handler {
		return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, req *nethttp.Request) {
			next.ServeHTTP(w, req.WithContext(authmw.WithSubject(req.Context(), "teacher1")))
		})
	})
	r.Post("/packages", api.UploadPackageHandler(pub))
	r.Get("/packages", api.ListPackagesHandler(store))
	r.Get("/packages/{packageID}", api.GetPackageHandler(store))
	r.Get("/packages/{packageID}/download", api.DownloadPackageHandler(pub))
	r.Post("/bridge/{enrollmentID}/messages", api.RelayMessagesHandler(rcv, api.BridgeOptions{MaxBatch: 3, Timeout: time.Second}))
	r.Get("/bridge/{enrollmentID}/state", api.LearnerStateHandler(rcv))
	r.Get("/bridge/{enrollmentID}/events", api.BridgeEventsHandler(rcv))
	r.Get("/healthz", api.HealthHandler)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return fixture{srv: srv, store: store}
}

func (f fixture) do(t *testing.T, method, path, contentType, body string) *nethttp.Response {
	t.Helper()
	req, err := nethttp.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decode(t *testing.T, res *nethttp.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(res.Body).Decode(v))
}

func TestUploadListDownload(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, nethttp.MethodPost, "/packages", "application/yaml", yamlDoc)
	require.Equal(t, nethttp.StatusCreated, res.StatusCode)
	var pkg catalog.Package
	decode(t, res, &pkg)
	assert.Equal(t, "intro", pkg.ID)
	assert.Equal(t, "teacher1", pkg.CreatedBy)

	res = f.do(t, nethttp.MethodGet, "/packages?limit=500", "", "")
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	var list struct {
		Items []catalog.Package `json:"items"`
		Limit int               `json:"limit"`
	}
	decode(t, res, &list)
	assert.Len(t, list.Items, 1)
	assert.Equal(t, 200, list.Limit)

	res = f.do(t, nethttp.MethodGet, "/packages/intro/download", "", "")
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	assert.Equal(t, "application/zip", res.Header.Get("Content-Type"))
	assert.Contains(t, res.Header.Get("Content-Disposition"), "intro.zip")
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	assert.Len(t, zr.File, 2)

	assert.Equal(t, nethttp.StatusNotFound, f.do(t, nethttp.MethodGet, "/packages/nope", "", "").StatusCode)
	assert.Equal(t, nethttp.StatusNotFound, f.do(t, nethttp.MethodGet, "/packages/nope/download", "", "").StatusCode)
}

func TestUploadRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, nethttp.MethodPost, "/packages", "application/json", `{"title":"x","sections":[]}`)
	assert.Equal(t, nethttp.StatusBadRequest, res.StatusCode)
	res = f.do(t, nethttp.MethodPost, "/packages?format=yaml", "", "sections: [")
	assert.Equal(t, nethttp.StatusBadRequest, res.StatusCode)
}

func envelope(id string, typ host.MessageType, payload any) host.Envelope {
	b, _ := json.Marshal(payload)
	return host.Envelope{ID: id, Type: typ, PackageID: "intro", Payload: b, SentAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
}

func marshal(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestBridgeRelayAndState(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, nethttp.MethodGet, "/bridge/e1/state", "", "")
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	var st bridge.LearnerState
	decode(t, res, &st)
	assert.Equal(t, "not attempted", st.LessonStatus)

	batch := []host.Envelope{
		envelope("m1", host.MsgSuspendData, host.SuspendData{Data: "blob"}),
		envelope("m2", host.MsgCourseComplete, host.CourseComplete{Score: 100, LessonStatus: "passed"}),
	}
	res = f.do(t, nethttp.MethodPost, "/bridge/e1/messages", "application/json", marshal(t, batch))
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	var out struct{ Accepted, Received int }
	decode(t, res, &out)
	assert.Equal(t, 2, out.Accepted)

	// single envelope form, duplicate id
	res = f.do(t, nethttp.MethodPost, "/bridge/e1/messages", "application/json", marshal(t, batch[0]))
	require.Equal(t, nethttp.StatusOK, res.StatusCode)
	decode(t, res, &out)
	assert.Equal(t, 0, out.Accepted)
	assert.Equal(t, 1, out.Received)

	res = f.do(t, nethttp.MethodGet, "/bridge/e1/state", "", "")
	decode(t, res, &st)
	assert.Equal(t, "blob", st.SuspendData)
	assert.Equal(t, "passed", st.LessonStatus)
	require.NotNil(t, st.Score)
	assert.Equal(t, 100, *st.Score)

	res = f.do(t, nethttp.MethodGet, "/bridge/e1/events", "", "")
	var evs struct{ Items []bridge.Event }
	decode(t, res, &evs)
	assert.Len(t, evs.Items, 2)
}

func TestBridgeRejects(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, nethttp.StatusBadRequest, f.do(t, nethttp.MethodPost, "/bridge/e1/messages", "", "{").StatusCode)

	bad := envelope("m1", "NOPE", map[string]int{})
	assert.Equal(t, nethttp.StatusBadRequest, f.do(t, nethttp.MethodPost, "/bridge/e1/messages", "", marshal(t, bad)).StatusCode)

	var many []host.Envelope
	for i := range 4 {
		many = append(many, envelope(fmt.Sprint("m", i), host.MsgHeartbeat, host.Heartbeat{Seconds: i}))
	}
	assert.Equal(t, nethttp.StatusRequestEntityTooLarge, f.do(t, nethttp.MethodPost, "/bridge/e1/messages", "", marshal(t, many)).StatusCode)
}

type fakeDB struct{ err error }

func (d fakeDB) PingContext(context.Context) error { return d.err }

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	api.HealthHandler(rec, httptest.NewRequest(nethttp.MethodGet, "/healthz", nil))
	assert.Equal(t, nethttp.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	api.ReadyHandler(fakeDB{})(rec, httptest.NewRequest(nethttp.MethodGet, "/readyz", nil))
	assert.Equal(t, nethttp.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	api.ReadyHandler(fakeDB{err: errors.New("down")})(rec, httptest.NewRequest(nethttp.MethodGet, "/readyz", nil))
	assert.Equal(t, nethttp.StatusServiceUnavailable, rec.Code)
}

