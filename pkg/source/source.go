// Package source turns configured media sources into inventories of
// candidate items. Two adapters exist: remote web albums (driven by an
// external page Inspector) and local directories.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/lucvincent/photoloop/pkg/media"
)

// Item is one inventory record produced by an adapter.
type Item struct {
	URI        string
	Kind       media.Kind
	AlbumLabel string
	Caption    string // rarely populated at inventory time
}

// ProgressFunc reports adapter progress (stage, current, total).
type ProgressFunc func(stage string, current, total int)

// MetadataResult is one late-bound metadata record for a remote item.
// Empty fields mean the detail view had nothing; the result must still be
// delivered so the caller can mark the item as fetched.
type MetadataResult struct {
	URI      string
	Caption  string
	Location string
	Date     *time.Time
}

// Adapter enumerates a single configured source.
type Adapter interface {
	// Label returns the human label scoping catalog entries to this source.
	Label() string
	// Type returns the source type for entries created from this adapter.
	Type() media.SourceType
	// Inventory yields every candidate item the source currently contains.
	// A hard failure returns an error and no partial inventory.
	Inventory(ctx context.Context, progress ProgressFunc) ([]Item, error)
}

// MetadataFetcher is the optional follow-up capability of adapters whose
// items carry late-bound metadata (caption, location, date) reachable only
// through each item's detail view. Results stream through each so callers
// can persist incrementally.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, uris map[string]bool, each func(MetadataResult), progress ProgressFunc) error
}

// VariantURLer is the optional capability of adapters whose items are
// downloaded from a variant of the base URI, chosen by acquisition policy.
type VariantURLer interface {
	VariantURL(uri string, kind media.Kind, maxDimension int, fullResolution bool) string
}

// Error is a structured per-source failure recorded on sync progress.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
