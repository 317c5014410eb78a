package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mind-engage/coursepack/internal/content"
	"github.com/mind-engage/coursepack/internal/logger"
	"github.com/mind-engage/coursepack/internal/pkgexport"
	"github.com/mind-engage/coursepack/internal/render"
	"github.com/mind-engage/coursepack/internal/storage"
)

// Publisher turns an uploaded content document into a stored package.
type Publisher struct {
	Store    Store
	Blobs    storage.BlobStore
	Renderer *render.Renderer
	// RuntimeScript is baked into every package.
	RuntimeScript string
	Log           *logger.Logger
	Now           func() time.Time
}

// Publish decodes, validates and exports a document read from r.
func (p *Publisher) Publish(ctx context.Context, r io.Reader, f content.Format, createdBy string) (Package, error) {
	doc, err := content.Decode(r, f)
	if err != nil {
		return Package{}, fmt.Errorf("%w: %v", pkgexport.ErrInvalid, err)
	}
	return p.PublishDocument(ctx, doc, createdBy)
}

func (p *Publisher) PublishDocument(ctx context.Context, doc *content.Document, createdBy string) (Package, error) {
	zipped, id, err := pkgexport.Build(doc, p.Renderer, pkgexport.Options{RuntimeScript: p.RuntimeScript})
	if err != nil {
		return Package{}, err
	}
	key, err := p.Blobs.Put(storage.PackageKey(id), bytes.NewReader(zipped))
	if err != nil {
		return Package{}, fmt.Errorf("store package %s: %w", id, err)
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	pkg := Package{
		ID:           id,
		Title:        doc.Title,
		BlobKey:      key,
		MasteryScore: doc.MasteryScore,
		CreatedBy:    createdBy,
		CreatedAt:    now().UTC().Truncate(time.Second),
	}
	if err := p.Store.Put(ctx, pkg); err != nil {
		return Package{}, fmt.Errorf("catalog package %s: %w", id, err)
	}
	if p.Log != nil {
		p.Log.Info("package published", "id", id, "title", doc.Title, "bytes", len(zipped), "by", createdBy)
	}
	return pkg, nil
}

// Open returns the package zip.
func (p *Publisher) Open(ctx context.Context, id string) (Package, io.ReadCloser, error) {
	pkg, err := p.Store.Get(ctx, id)
	if err != nil {
		return Package{}, nil, err
	}
	rc, err := p.Blobs.Get(pkg.BlobKey)
	if err != nil {
		return Package{}, nil, fmt.Errorf("open package %s: %w", id, err)
	}
	return pkg, rc, nil
}
