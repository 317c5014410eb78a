// Package pkgexport builds the distributable course package: a zip holding
// the rendered index.html and a SCORM 1.2 imsmanifest.xml.
package pkgexport

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/coursepack/internal/content"
	"github.com/mind-engage/coursepack/internal/render"
)

const (
	IndexFile    = "index.html"
	ManifestFile = "imsmanifest.xml"
)

var ErrInvalid = errors.New("invalid course document")

// Options tune a build. The zero value is usable.
type Options struct {
	// PackageID names the manifest and the bridge messages. A random
	// UUID is used when empty.
	PackageID string
	// RuntimeScript is inlined into index.html.
	RuntimeScript string
	Style         string
	// Assets are extra files copied into the zip, keyed by their path
	// inside the package.
	Assets map[string]io.Reader
	// Modified stamps every zip entry. Fixed stamps give reproducible zips.
	Modified time.Time
}

// Build validates doc and returns the zip bytes and the package ID used.
func Build(doc *content.Document, r *render.Renderer, opts Options) ([]byte, string, error) {
	if err := content.Validate(doc); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	id := opts.PackageID
	if id == "" {
		id = doc.ID
	}
	if id == "" {
		id = uuid.NewString()
	}
	if r == nil {
		var err error
		if r, err = render.New(); err != nil {
			return nil, "", err
		}
	}
	mod := opts.Modified
	if mod.IsZero() {
		mod = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	create := func(name string) (io.Writer, error) {
		return zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: mod})
	}

	w, err := create(IndexFile)
	if err != nil {
		return nil, "", err
	}
	if err := r.Page(w, doc, render.PageOptions{PackageID: id, Script: opts.RuntimeScript, Style: opts.Style}); err != nil {
		return nil, "", err
	}

	files := []string{IndexFile}
	for _, name := range sortedKeys(opts.Assets) {
		clean := path.Clean(strings.TrimPrefix(name, "/"))
		if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || clean == IndexFile || clean == ManifestFile {
			return nil, "", fmt.Errorf("asset path %q not allowed", name)
		}
		w, err := create(clean)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(w, opts.Assets[name]); err != nil {
			return nil, "", fmt.Errorf("copy asset %s: %w", name, err)
		}
		files = append(files, clean)
	}

	mw, err := create(ManifestFile)
	if err != nil {
		return nil, "", err
	}
	b, err := xml.MarshalIndent(buildManifest(id, doc, files), "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("encode manifest: %w", err)
	}
	if _, err := io.WriteString(mw, xml.Header); err != nil {
		return nil, "", fmt.Errorf("write manifest: %w", err)
	}
	if _, err := mw.Write(b); err != nil {
		return nil, "", fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), id, nil
}

func sortedKeys(m map[string]io.Reader) []string {
	return slices.Sorted(maps.Keys(m))
}

// --- SCORM 1.2 manifest model ---

type manifest struct {
	XMLName       xml.Name      `xml:"manifest"`
	Identifier    string        `xml:"identifier,attr"`
	Version       string        `xml:"version,attr"`
	Xmlns         string        `xml:"xmlns,attr"`
	XmlnsAdlcp    string        `xml:"xmlns:adlcp,attr"`
	Metadata      metadata      `xml:"metadata"`
	Organizations organizations `xml:"organizations"`
	Resources     []resource    `xml:"resources>resource"`
}

type metadata struct {
	Schema        string `xml:"schema"`
	SchemaVersion string `xml:"schemaversion"`
}

type organizations struct {
	Default string         `xml:"default,attr"`
	Orgs    []organization `xml:"organization"`
}

type organization struct {
	Identifier string `xml:"identifier,attr"`
	Title      string `xml:"title"`
	Items      []item `xml:"item"`
}

type item struct {
	Identifier    string `xml:"identifier,attr"`
	IdentifierRef string `xml:"identifierref,attr"`
	Title         string `xml:"title"`
	MasteryScore  string `xml:"adlcp:masteryscore,omitempty"`
}

type resource struct {
	Identifier string `xml:"identifier,attr"`
	Type       string `xml:"type,attr"`
	ScormType  string `xml:"adlcp:scormtype,attr"`
	Href       string `xml:"href,attr"`
	Files      []file `xml:"file"`
}

type file struct {
	Href string `xml:"href,attr"`
}

func buildManifest(id string, doc *content.Document, files []string) manifest {
	it := item{Identifier: "item-1", IdentifierRef: "res-1", Title: doc.Title}
	if m, ok := doc.Mastery(); ok {
		it.MasteryScore = strconv.Itoa(m)
	}
	res := resource{Identifier: "res-1", Type: "webcontent", ScormType: "sco", Href: IndexFile}
	for _, f := range files {
		res.Files = append(res.Files, file{Href: f})
	}
	return manifest{
		Identifier: id,
		Version:    "1.2",
		Xmlns:      "http://www.imsproject.org/xsd/imscp_rootv1p1p2",
		XmlnsAdlcp: "http://www.adlnet.org/xsd/adlcp_rootv1p2",
		Metadata:   metadata{Schema: "ADL SCORM", SchemaVersion: "1.2"},
		Organizations: organizations{
			Default: "org-1",
			Orgs:    []organization{{Identifier: "org-1", Title: doc.Title, Items: []item{it}}},
		},
		Resources: []resource{res},
	}
}
