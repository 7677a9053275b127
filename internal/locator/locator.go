// Package locator maps logical references onto physical source files.
package locator

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/slug"
	"github.com/starford/quire/internal/storage"
)

// errStop ends the fallback walk at the first match.
var errStop = errors.New("locator: stop walk")

// Locator finds the single source file behind a logical reference.
// It is safe for concurrent use.
type Locator struct {
	store      storage.Provider
	categories []string
	exts       []string
	logger     *slog.Logger
	calls      atomic.Int64
}

// Option configures a Locator.
type Option func(*Locator)

// WithCategories overrides the category directories searched after the root.
func WithCategories(categories ...string) Option {
	return func(l *Locator) {
		if len(categories) > 0 {
			l.categories = categories
		}
	}
}

// WithExtensions overrides the source extensions, in lookup order.
func WithExtensions(exts ...string) Option {
	return func(l *Locator) {
		if len(exts) > 0 {
			l.exts = exts
		}
	}
}

// WithLogger sets the logger used for fallback-walk diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locator) {
		l.logger = logger
	}
}

// New creates a Locator over store.
func New(store storage.Provider, opts ...Option) *Locator {
	l := &Locator{
		store:      store,
		categories: slug.Categories,
		exts:       slug.Extensions,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Calls returns how many times Find has been invoked.
func (l *Locator) Calls() int64 { return l.calls.Load() }

// Find returns the root-relative path of the source behind ref. An ordinary
// miss returns an error matching apperr.ErrNotFound; any other file-system
// failure matches apperr.ErrIO.
func (l *Locator) Find(ref string) (string, error) {
	l.calls.Add(1)

	s := slug.Normalize(ref)
	raw := cleanRaw(ref)
	if s == "" && raw == "" {
		return "", fmt.Errorf("locator: empty reference: %w", apperr.ErrNotFound)
	}

	for _, candidate := range l.candidates(raw, s) {
		ok, err := l.exists(candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}

	if s != "" {
		found, err := l.search(slug.Base(s))
		if err != nil {
			return "", err
		}
		if found != "" {
			l.logger.Debug("reference resolved by search",
				slog.String("ref", ref),
				slog.String("path", found))
			return found, nil
		}
	}
	return "", fmt.Errorf("locator: %q: %w", ref, apperr.ErrNotFound)
}

// candidates lists the direct lookups in priority order without duplicates.
func (l *Locator) candidates(raw, s string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if p == "" || p == "." {
			return
		}
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	tryName := func(name string) {
		for _, ext := range l.exts {
			add(name + ext)
		}
		for _, c := range l.categories {
			for _, ext := range l.exts {
				add(path.Join(c, name+ext))
			}
		}
	}

	if raw != "" {
		add(raw)
		if slug.TrimExtension(raw) == raw {
			for _, ext := range l.exts {
				add(raw + ext)
			}
		}
	}
	if s != "" {
		tryName(s)
		if strings.Contains(s, "/") {
			tryName(slug.Base(s))
		}
	}
	return out
}

// exists reports whether rel names a regular file.
func (l *Locator) exists(rel string) (bool, error) {
	info, err := l.store.Stat(rel)
	if err == nil {
		return info.Mode().IsRegular(), nil
	}
	if isMiss(err) {
		return false, nil
	}
	return false, fmt.Errorf("locator: stat %s: %w: %w", rel, apperr.ErrIO, err)
}

// search walks the content root in lexical order for base + extension.
func (l *Locator) search(base string) (string, error) {
	var found string
	err := l.store.Walk("", func(rel string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if isMiss(walkErr) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		ext := strings.ToLower(path.Ext(name))
		if !slices.Contains(l.exts, ext) {
			return nil
		}
		if strings.TrimSuffix(name, path.Ext(name)) == base {
			found = rel
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return "", fmt.Errorf("locator: search %s: %w: %w", base, apperr.ErrIO, err)
	}
	return found, nil
}

func isMiss(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, storage.ErrPathEscapes) ||
		errors.Is(err, syscall.ENOTDIR)
}

// cleanRaw strips alias, fragment and separators from ref but keeps its
// directories and extension so an exact path can be tried first.
func cleanRaw(ref string) string {
	s := strings.TrimSpace(ref)
	if i := strings.IndexAny(s, "|#"); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, `\`, "/")
	for strings.HasPrefix(s, "./") {
		s = s[2:]
	}
	s = strings.Trim(s, "/ ")
	if s == "" {
		return ""
	}
	return path.Clean(s)
}
