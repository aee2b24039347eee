package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucvincent/photoloop/pkg/media"
	"github.com/lucvincent/photoloop/util/log"
)

// Local scans a directory tree for photos and videos. Hidden entries are
// skipped, symbolic links are followed with an identity guard against
// cycles, and files are classified by extension against the fixed
// allowlists in pkg/media.
type Local struct {
	label string
	path  string

	// OnWarning receives non-fatal problems (missing directory, permission
	// errors). They never fail the sync. Defaults to a log line.
	OnWarning func(err error)
}

// NewLocal creates a local directory adapter.
func NewLocal(label, path string) *Local {
	return &Local{label: label, path: path}
}

// Label implements Adapter.
func (l *Local) Label() string { return l.label }

// Type implements Adapter.
func (l *Local) Type() media.SourceType { return media.SourceLocal }

func (l *Local) warn(err error) {
	if l.OnWarning != nil {
		l.OnWarning(err)
		return
	}
	log.Printf("Local source %s: %v", l.label, err)
}

// Inventory implements Adapter. A missing or unreadable directory yields an
// empty inventory plus a warning, never an error.
func (l *Local) Inventory(ctx context.Context, progress ProgressFunc) ([]Item, error) {
	info, err := os.Stat(l.path)
	if err != nil || !info.IsDir() {
		l.warn(&Error{Source: l.label, Err: os.ErrNotExist})
		return nil, nil
	}

	var items []Item
	visited := make(map[fileIdentity]bool)
	l.scanDir(ctx, l.path, visited, &items)

	if progress != nil {
		progress("complete", len(items), len(items))
	}
	log.Printf("Found %d media files in %s", len(items), l.path)
	return items, nil
}

func (l *Local) scanDir(ctx context.Context, dir string, visited map[fileIdentity]bool, items *[]Item) {
	if ctx.Err() != nil {
		return
	}

	// Symlink-cycle guard: skip directories whose identity was already seen.
	id, err := identityOf(dir)
	if err != nil {
		l.warn(&Error{Source: l.label, Err: err})
		return
	}
	if visited[id] {
		log.Debugf("Skipping already-visited directory (symlink loop): %s", dir)
		return
	}
	visited[id] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		l.warn(&Error{Source: l.label, Err: err})
		return
	}

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		full := filepath.Join(dir, entry.Name())

		// os.Stat follows symlinks, so a linked directory recurses and a
		// linked file is indexed under its link path.
		info, err := os.Stat(full)
		if err != nil {
			l.warn(&Error{Source: l.label, Err: err})
			continue
		}

		if info.IsDir() {
			l.scanDir(ctx, full, visited, items)
			continue
		}

		kind := media.KindForPath(entry.Name())
		if kind == "" {
			continue
		}
		abs, err := filepath.Abs(full)
		if err != nil {
			abs = full
		}
		*items = append(*items, Item{
			URI:        "file://" + abs,
			Kind:       kind,
			AlbumLabel: l.label,
		})
	}
}

// LocalPathFromURI strips the file:// prefix from a local item URI.
func LocalPathFromURI(uri string) (string, bool) {
	if strings.HasPrefix(uri, "file://") {
		return uri[len("file://"):], true
	}
	return "", false
}
