package api

import (
	"errors"
	"net/http"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/quire/internal/storage"
)

// assetDirs are searched, in order, after the content root itself.
var assetDirs = []string{"attachments", "assets", "images"}

// AssetHandler serves media referenced by rendered documents from the
// content root. Source files are never served raw.
type AssetHandler struct {
	store storage.Provider
	exts  []string
}

// NewAssetHandler creates a handler over store. exts lists the source
// extensions that must not be served.
func NewAssetHandler(store storage.Provider, exts []string) *AssetHandler {
	if len(exts) == 0 {
		exts = storage.DefaultExtensions
	}
	return &AssetHandler{store: store, exts: exts}
}

// find returns the content-relative path of the asset named rel.
func (h *AssetHandler) find(rel string) (string, error) {
	candidates := []string{rel}
	for _, d := range assetDirs {
		candidates = append(candidates, path.Join(d, rel))
	}
	for _, c := range candidates {
		info, err := h.store.Stat(c)
		if errors.Is(err, storage.ErrPathEscapes) {
			return "", err
		}
		if err == nil && info.Mode().IsRegular() {
			return c, nil
		}
	}
	return "", nil
}

// ServeFile handles GET /assets/*.
func (h *AssetHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	raw := refParam(r)
	rel := path.Clean("/" + raw)[1:]
	if rel == "" || strings.Contains(raw, "..") {
		http.Error(w, "invalid asset path", http.StatusBadRequest)
		return
	}
	if slices.Contains(h.exts, strings.ToLower(path.Ext(rel))) {
		http.NotFound(w, r)
		return
	}
	found, err := h.find(rel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if found == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.store.Root(), filepath.FromSlash(found)))
}
