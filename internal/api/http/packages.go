package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"strconv"
	"strings"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/coursepack/internal/auth/middleware"
	"github.com/mind-engage/coursepack/internal/catalog"
	"github.com/mind-engage/coursepack/internal/content"
	"github.com/mind-engage/coursepack/internal/pkgexport"
)

// Handlers only; routes live in cmd/gateway.

const maxDocumentBytes = 8 << 20

// POST /packages  body: content document (JSON, or YAML by Content-Type or ?format=yaml)
func UploadPackageHandler(pub *catalog.Publisher) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		body := nethttp.MaxBytesReader(w, r.Body, maxDocumentBytes)
		pkg, err := pub.Publish(r.Context(), body, requestFormat(r), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			var tooBig *nethttp.MaxBytesError
			switch {
			case errors.As(err, &tooBig):
				nethttp.Error(w, "document too large", nethttp.StatusRequestEntityTooLarge)
			case errors.Is(err, pkgexport.ErrInvalid):
				nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			default:
				nethttp.Error(w, "publish failed", nethttp.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(nethttp.StatusCreated)
		_ = json.NewEncoder(w).Encode(pkg)
	}
}

func requestFormat(r *nethttp.Request) content.Format {
	if f := r.URL.Query().Get("format"); f != "" {
		if strings.EqualFold(f, "yaml") || strings.EqualFold(f, "yml") {
			return content.FormatYAML
		}
		return content.FormatJSON
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return content.FormatYAML
	}
	return content.FormatJSON
}

// GET /packages?limit=&offset=
func ListPackagesHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		limit := 50
		offset := 0
		if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
			limit = min(v, 200)
		}
		if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
			offset = v
		}
		items, err := store.List(r.Context(), limit, offset)
		if err != nil {
			nethttp.Error(w, "db error", nethttp.StatusInternalServerError)
			return
		}
		if items == nil {
			items = []catalog.Package{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "limit": limit, "offset": offset})
	}
}

// GET /packages/{packageID}
func GetPackageHandler(store catalog.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		pkg, err := store.Get(r.Context(), chi.URLParam(r, "packageID"))
		if err != nil {
			writeLookupError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pkg)
	}
}

// GET /packages/{packageID}/download
func DownloadPackageHandler(pub *catalog.Publisher) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		pkg, rc, err := pub.Open(r.Context(), chi.URLParam(r, "packageID"))
		if err != nil {
			writeLookupError(w, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": pkg.ID + ".zip"}))
		_, _ = io.Copy(w, rc)
	}
}

func writeLookupError(w nethttp.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		nethttp.Error(w, "not found", nethttp.StatusNotFound)
		return
	}
	nethttp.Error(w, "db error", nethttp.StatusInternalServerError)
}
