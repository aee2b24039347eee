// Command catalog_report prints a summary of a PhotoLoop catalog: counts,
// cache weight, per-source sync times and entries with stale or missing
// artifacts. Useful when debugging a frame over ssh.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/lucvincent/photoloop/config"
	"github.com/lucvincent/photoloop/pkg/library"
	"github.com/lucvincent/photoloop/pkg/media"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	store := library.NewStore(cfg.Cache.Directory, cfg.Fingerprint())
	if err := store.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "open catalog: %v\n", err)
		os.Exit(1)
	}

	photos, videos := store.CountByKind()
	fmt.Printf("Catalog: %s\n", cfg.Cache.Directory)
	fmt.Printf("  photos: %d  videos: %d\n", photos, videos)
	fmt.Printf("  on disk: %s\n", humanize.Bytes(uint64(store.TotalBytesOnDisk())))

	syncTimes := store.SourceSyncTimes()
	names := make([]string, 0, len(syncTimes))
	for name := range syncTimes {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("Sources:")
	for _, name := range names {
		fmt.Printf("  %-30s last sync %s\n", name, humanize.Time(syncTimes[name]))
	}

	var missingBytes, noFaces, noParams, noMetadata int
	for _, e := range store.AllActive() {
		if _, err := os.Stat(e.LocalPath); err != nil {
			missingBytes++
		}
		if e.Kind != media.KindPhoto {
			continue
		}
		if e.CachedFaces == nil {
			noFaces++
		}
		if e.DisplayParams == nil {
			noParams++
		}
		if e.SourceType == media.SourceRemoteAlbum && !e.RemoteMetadataFetched {
			noMetadata++
		}
	}
	fmt.Printf("Artifacts (of %d active):\n", photos+videos)
	fmt.Printf("  missing bytes on disk: %d\n", missingBytes)
	fmt.Printf("  photos without cached faces: %d\n", noFaces)
	fmt.Printf("  photos without display params: %d\n", noParams)
	fmt.Printf("  remote photos awaiting metadata: %d\n", noMetadata)
}
