package main

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "github.com/mind-engage/coursepack/internal/api/http"
	"github.com/mind-engage/coursepack/internal/bridge"
	"github.com/mind-engage/coursepack/internal/host"
	"github.com/mind-engage/coursepack/internal/logger"
	"github.com/mind-engage/coursepack/internal/pkgexport"
)

const courseYAML = `
id: basics
title: Basics
sections:
  - id: s1
    title: First
    activities:
      - id: q1
        type: true_false
        statement: One is odd
        answer: true
  - id: s2
    title: Second
    activities:
      - id: q2
        type: true_false
        statement: Two is odd
        answer: false
`

func writeDoc(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	good := writeDoc(t, "good.yaml", courseYAML)
	bad := writeDoc(t, "bad.json", `{"title":"empty","sections":[]}`)

	out, err := run(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok   "+good)

	out, err = run(t, "validate", good, bad)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL "+bad)
	assert.Contains(t, out, "no sections")
}

func TestExport(t *testing.T) {
	doc := writeDoc(t, "course.yaml", courseYAML)
	dir := t.TempDir()
	js := filepath.Join(dir, "runtime.js")
	require.NoError(t, os.WriteFile(js, []byte("window.cp=1"), 0o644))
	logo := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(logo, []byte("png"), 0o644))
	zipPath := filepath.Join(dir, "out.zip")

	out, err := run(t, "export", doc, "--out", zipPath, "--runtime-js", js, "--asset", "img/logo.png="+logo)
	require.NoError(t, err)
	assert.Contains(t, out, "package basics")

	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{pkgexport.IndexFile, "img/logo.png", pkgexport.ManifestFile}, names)
}

func TestInspect(t *testing.T) {
	doc := writeDoc(t, "course.yaml", courseYAML)
	page := filepath.Join(t.TempDir(), "page.html")

	out, err := run(t, "inspect", doc, "--html", page)
	require.NoError(t, err)
	assert.Contains(t, out, "Basics  (2 sections, progress 0%")
	assert.Contains(t, out, "First")

	b, err := os.ReadFile(page)
	require.NoError(t, err)
	assert.Contains(t, string(b), `data-id="q1"`)
}

func TestSimulateResumes(t *testing.T) {
	doc := writeDoc(t, "course.yaml", courseYAML)
	dsn := filepath.Join(t.TempDir(), "state.db")

	out, err := run(t, "simulate", doc, "--db-dsn", dsn, "--pass", "q1")
	require.NoError(t, err)
	assert.Contains(t, out, "mode standalone")
	assert.NotContains(t, out, "progress 100%")

	out, err = run(t, "simulate", doc, "--db-dsn", dsn, "--pass", "q2")
	require.NoError(t, err)
	assert.Contains(t, out, "progress 100%")
	assert.Contains(t, out, "status completed")

	out, err = run(t, "simulate", doc, "--db-dsn", dsn, "--reset")
	require.NoError(t, err)
	assert.Contains(t, out, "progress 0%")

	_, err = run(t, "simulate", doc, "--db-dsn", dsn, "--pass", "q2")
	assert.Error(t, err, "second section is locked after a reset")
}

func TestSimulateOverBridge(t *testing.T) {
	rcv := bridge.NewReceiver(bridge.NewMemoryStore(nil), logger.Nop())
	r := chi.NewRouter()
	r.Post("/bridge/{enrollmentID}/messages", api.RelayMessagesHandler(rcv, api.BridgeOptions{}))
	r.Get("/bridge/{enrollmentID}/state", api.LearnerStateHandler(rcv))
	srv := httptest.NewServer(r)
	defer srv.Close()

	doc := writeDoc(t, "course.yaml", courseYAML)
	out, err := run(t, "simulate", doc, "--bridge", srv.URL+"/bridge/e7", "--pass", "q1",
		"--session", "60ms", "--heartbeat", "10ms")
	require.NoError(t, err)
	assert.Contains(t, out, "mode bridge")

	st, err := rcv.InitialState(context.Background(), "e7")
	require.NoError(t, err)
	assert.Equal(t, "basics", st.PackageID)
	assert.Equal(t, 1, st.SectionsDone)
	assert.NotEmpty(t, st.SuspendData)

	evs, err := rcv.Events(context.Background(), "e7", 0, 0)
	require.NoError(t, err)
	var types []string
	for _, e := range evs {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, string(host.MsgHeartbeat))
}
