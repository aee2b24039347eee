package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/lucvincent/photoloop/config"
	"github.com/lucvincent/photoloop/pkg/library"
	"github.com/lucvincent/photoloop/pkg/media"
	"github.com/lucvincent/photoloop/util/log"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleStatus reports the frame's full state in one document.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	photos, videos := s.lib.Store().CountByKind()

	status := map[string]interface{}{
		"mode":          s.sched.Mode(now),
		"paused":        s.frame.Paused(),
		"photos":        photos,
		"videos":        videos,
		"playlist_size": s.lib.PlaylistSize(),
		"cache_size_mb": float64(s.lib.Store().TotalBytesOnDisk()) / 1024 / 1024,
		"schedule":      s.sched.Status(now),
		"sync_progress": s.lib.Store().Progress(),
		"source_synced": s.lib.Store().SourceSyncTimes(),
	}
	writeJSON(w, http.StatusOK, status)
}

type sourceView struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Label   string `json:"label"`
	Type    string `json:"type"`
	URL     string `json:"url,omitempty"`
	Path    string `json:"path,omitempty"`
	Enabled bool   `json:"enabled"`
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	cfg := s.lib.Config()
	views := make([]sourceView, len(cfg.Sources))
	for i, src := range cfg.Sources {
		views[i] = sourceView{
			Index:   i,
			Name:    src.Name,
			Label:   src.Label(),
			Type:    src.Type,
			URL:     src.URL,
			Path:    src.Path,
			Enabled: src.Enabled,
		}
	}
	writeJSON(w, http.StatusOK, views)
}

// editSources applies fn to a copy of the source list, validates, and
// pushes the edited config into the running components.
func (s *Server) editSources(fn func(sources []config.SourceConfig) ([]config.SourceConfig, error)) error {
	cfg := *s.lib.Config()
	sources := make([]config.SourceConfig, len(cfg.Sources))
	copy(sources, cfg.Sources)

	edited, err := fn(sources)
	if err != nil {
		return err
	}
	cfg.Sources = edited
	if err := config.Validate(&cfg); err != nil {
		return err
	}
	if s.ApplyConfig != nil {
		s.ApplyConfig(&cfg)
	} else {
		s.lib.SetConfig(&cfg)
	}
	return nil
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var desc config.SourceConfig
	if err := json.NewDecoder(r.Body).Decode(&desc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid source descriptor")
		return
	}
	err := s.editSources(func(sources []config.SourceConfig) ([]config.SourceConfig, error) {
		return append(sources, desc), nil
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

func sourceIndex(r *http.Request, count int) (int, error) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 || idx >= count {
		return 0, fmt.Errorf("invalid source index")
	}
	return idx, nil
}

func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	err := s.editSources(func(sources []config.SourceConfig) ([]config.SourceConfig, error) {
		idx, err := sourceIndex(r, len(sources))
		if err != nil {
			return nil, err
		}
		return append(sources[:idx], sources[idx+1:]...), nil
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleSetSourceEnabled(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	err := s.editSources(func(sources []config.SourceConfig) ([]config.SourceConfig, error) {
		idx, err := sourceIndex(r, len(sources))
		if err != nil {
			return nil, err
		}
		sources[idx].Enabled = body.Enabled
		return sources, nil
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleSetSourceName(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	err := s.editSources(func(sources []config.SourceConfig) ([]config.SourceConfig, error) {
		idx, err := sourceIndex(r, len(sources))
		if err != nil {
			return nil, err
		}
		sources[idx].Name = body.Name
		return sources, nil
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleStartSync(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ForceFull                bool `json:"force_full"`
		UpdateAllMissingMetadata bool `json:"update_all_missing_metadata"`
		ForceRefetchAllMetadata  bool `json:"force_refetch_all_metadata"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if s.lib.Store().Progress().IsSyncing {
		writeError(w, http.StatusConflict, "sync already in progress")
		return
	}
	s.frame.RequestSync(library.SyncFlags{
		ForceFull:                body.ForceFull,
		UpdateAllMissingMetadata: body.UpdateAllMissingMetadata,
		ForceRefetchAllMetadata:  body.ForceRefetchAllMetadata,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync requested"})
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	log.Printf("Control request: %s", body.Action)

	now := time.Now()
	switch body.Action {
	case "force_slideshow":
		s.sched.ForceSlideshow(now)
	case "force_clock":
		s.sched.ForceClock(now)
	case "force_black":
		s.sched.ForceBlack(now)
	case "clear_override":
		s.sched.ClearOverride()
	case "next":
		s.frame.RequestNext()
	case "previous":
		s.frame.RequestPrevious()
	case "pause":
		s.frame.Pause()
	case "resume":
		s.frame.Resume()
	case "reload_config":
		if s.ReloadConfig != nil {
			if err := s.ReloadConfig(); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown action: "+body.Action)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type itemView struct {
	MediaID         string     `json:"media_id"`
	Kind            media.Kind `json:"kind"`
	RemoteCaption   string     `json:"remote_caption,omitempty"`
	EmbeddedCaption string     `json:"embedded_caption,omitempty"`
	RemoteLocation  string     `json:"remote_location,omitempty"`
	ExifLocation    string     `json:"exif_location,omitempty"`
	ExifDate        *time.Time `json:"exif_date,omitempty"`
	LocalPath       string     `json:"local_path"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	entries := s.lib.Store().AllActive()
	views := make([]itemView, len(entries))
	for i, e := range entries {
		views[i] = itemView{
			MediaID:         e.MediaID,
			Kind:            e.Kind,
			RemoteCaption:   e.RemoteCaption,
			EmbeddedCaption: e.EmbeddedCaption,
			RemoteLocation:  e.RemoteLocation,
			ExifLocation:    e.ExifLocation,
			ExifDate:        e.ExifDate,
			LocalPath:       e.LocalPath,
		}
	}
	writeJSON(w, http.StatusOK, views)
}
