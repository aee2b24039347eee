package source

import (
	"context"
	"fmt"
	"time"

	"github.com/lucvincent/photoloop/pkg/media"
	"github.com/lucvincent/photoloop/util/log"
)

// Inspector is the external web-page inspection contract. Implementations
// drive a browser or HTTP scraper against an album page; the core never
// touches the DOM. Classification of scraped text into caption, location
// and date happens inside the inspector, not here.
type Inspector interface {
	// Inventory yields the canonical base URIs of every item on the album
	// page, with their media kind.
	Inventory(ctx context.Context, albumURL string, progress ProgressFunc) ([]InspectedItem, error)
	// FetchMetadata opens each listed item's detail view and streams the
	// classified metadata back through each. Every listed URI must be
	// reported exactly once, with empty fields when nothing was found.
	FetchMetadata(ctx context.Context, albumURL string, uris map[string]bool, each func(uri, caption, location string, date *time.Time), progress ProgressFunc) error
	// VariantURL derives the download URL for a base URI under the given
	// acquisition policy.
	VariantURL(uri string, kind media.Kind, maxDimension int, fullResolution bool) string
}

// InspectedItem is one item reported by an Inspector.
type InspectedItem struct {
	URI     string
	Kind    media.Kind
	Caption string
}

// RemoteAlbum adapts an Inspector-driven web album into a source.
type RemoteAlbum struct {
	label     string
	albumURL  string
	inspector Inspector
}

// NewRemoteAlbum creates a remote album adapter.
func NewRemoteAlbum(label, albumURL string, inspector Inspector) *RemoteAlbum {
	return &RemoteAlbum{label: label, albumURL: albumURL, inspector: inspector}
}

// Label implements Adapter.
func (r *RemoteAlbum) Label() string { return r.label }

// Type implements Adapter.
func (r *RemoteAlbum) Type() media.SourceType { return media.SourceRemoteAlbum }

// Inventory implements Adapter. An inspector failure fails the whole
// source: a partially-scraped album must never masquerade as a small one.
func (r *RemoteAlbum) Inventory(ctx context.Context, progress ProgressFunc) ([]Item, error) {
	if r.inspector == nil {
		return nil, &Error{Source: r.label, Err: fmt.Errorf("no album inspector available")}
	}

	inspected, err := r.inspector.Inventory(ctx, r.albumURL, progress)
	if err != nil {
		return nil, &Error{Source: r.label, Err: err}
	}

	items := make([]Item, 0, len(inspected))
	for _, it := range inspected {
		items = append(items, Item{
			URI:        it.URI,
			Kind:       it.Kind,
			AlbumLabel: r.label,
			Caption:    it.Caption,
		})
	}
	log.Printf("Album %s: %d items", r.label, len(items))
	return items, nil
}

// FetchMetadata implements MetadataFetcher.
func (r *RemoteAlbum) FetchMetadata(ctx context.Context, uris map[string]bool, each func(MetadataResult), progress ProgressFunc) error {
	if r.inspector == nil {
		return &Error{Source: r.label, Err: fmt.Errorf("no album inspector available")}
	}
	err := r.inspector.FetchMetadata(ctx, r.albumURL, uris, func(uri, caption, location string, date *time.Time) {
		each(MetadataResult{URI: uri, Caption: caption, Location: location, Date: date})
	}, progress)
	if err != nil {
		return &Error{Source: r.label, Err: err}
	}
	return nil
}

// VariantURL implements VariantURLer.
func (r *RemoteAlbum) VariantURL(uri string, kind media.Kind, maxDimension int, fullResolution bool) string {
	if r.inspector == nil {
		return uri
	}
	return r.inspector.VariantURL(uri, kind, maxDimension, fullResolution)
}
