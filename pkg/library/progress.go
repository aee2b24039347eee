package library

import "time"

// Sync stages reported on SyncProgress.
const (
	StageIdle        = "idle"
	StageScraping    = "scraping"
	StageDownloading = "downloading"
	StageMetadata    = "fetching_metadata"
	StageComplete    = "complete"
	StageError       = "error"
)

// SyncProgress is the observable state of the current (or last) sync cycle.
// It lives under the catalog lock and is polled by the web layer; it holds
// no logic beyond field assignment.
type SyncProgress struct {
	IsSyncing     bool       `json:"is_syncing"`
	CycleID       string     `json:"cycle_id"`
	Stage         string     `json:"stage"`
	SourceName    string     `json:"source_name"`
	SourcesDone   int        `json:"sources_done"`
	SourcesTotal  int        `json:"sources_total"`
	ItemsFound    int        `json:"items_found"`
	AcquiredDone  int        `json:"acquired_done"`
	AcquiredTotal int        `json:"acquired_total"`
	ErrorMessage  string     `json:"error_message"`
	StartedAt     *time.Time `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
}

// SyncStats summarizes one completed sync cycle.
type SyncStats struct {
	New             int `json:"new"`
	Updated         int `json:"updated"`
	Deleted         int `json:"deleted"`
	Unchanged       int `json:"unchanged"`
	Errors          int `json:"errors"`
	MetadataUpdated int `json:"metadata_updated"`
}
