package catalog_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/coursepack/internal/catalog"
	"github.com/mind-engage/coursepack/internal/content"
	"github.com/mind-engage/coursepack/internal/db"
	"github.com/mind-engage/coursepack/internal/pkgexport"
	"github.com/mind-engage/coursepack/internal/storage"
)

const yamlDoc = `
id: onboarding
title: Onboarding
masteryScore: 70
sections:
  - id: s1
    title: Welcome
    activities:
      - id: t1
        type: text
        html: "<p>hi</p>"
      - id: q1
        type: true_false
        statement: The sky is blue
        answer: true
`

func stores(t *testing.T) map[string]catalog.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_").Replace(t.Name())
	conn, err := db.Open(context.Background(), db.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return map[string]catalog.Store{"memory": catalog.NewMemoryStore(), "sql": catalog.NewSQLStore(conn)}
}

func TestPublishAndOpen(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			blobs, err := storage.NewFSStore(t.TempDir())
			require.NoError(t, err)
			pub := &catalog.Publisher{
				Store: store,
				Blobs: blobs,
				Now:   func() time.Time { return time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC) },
			}
			ctx := context.Background()

			pkg, err := pub.Publish(ctx, strings.NewReader(yamlDoc), content.FormatYAML, "teacher1")
			require.NoError(t, err)
			assert.Equal(t, "onboarding", pkg.ID)
			assert.Equal(t, storage.PackageKey("onboarding"), pkg.BlobKey)
			require.NotNil(t, pkg.MasteryScore)
			assert.Equal(t, 70, *pkg.MasteryScore)

			got, rc, err := pub.Open(ctx, "onboarding")
			require.NoError(t, err)
			defer rc.Close()
			assert.Equal(t, pkg, got)

			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
			require.NoError(t, err)
			var names []string
			for _, f := range zr.File {
				names = append(names, f.Name)
			}
			assert.ElementsMatch(t, []string{pkgexport.IndexFile, pkgexport.ManifestFile}, names)

			list, err := store.List(ctx, 10, 0)
			require.NoError(t, err)
			assert.Len(t, list, 1)

			_, _, err = pub.Open(ctx, "missing")
			assert.ErrorIs(t, err, catalog.ErrNotFound)
		})
	}
}

func TestPublishRejectsInvalid(t *testing.T) {
	blobs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	pub := &catalog.Publisher{Store: catalog.NewMemoryStore(), Blobs: blobs}

	_, err = pub.Publish(context.Background(), strings.NewReader("{"), content.FormatJSON, "")
	assert.ErrorIs(t, err, pkgexport.ErrInvalid)

	_, err = pub.Publish(context.Background(), strings.NewReader(`{"title":"x","sections":[]}`), content.FormatJSON, "")
	assert.ErrorIs(t, err, pkgexport.ErrInvalid)
}

func TestMemoryListOrder(t *testing.T) {
	s := catalog.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, catalog.Package{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}
	list, err := s.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	list, err = s.List(ctx, 0, 5)
	require.NoError(t, err)
	assert.Empty(t, list)
}
