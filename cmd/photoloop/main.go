// Command photoloop runs the photo-frame core: catalog, sync, schedule and
// the control surface. The rasterizing renderer is pluggable; without one
// the headless renderer logs what would be shown, which is also how the
// core runs on a machine with no display attached.
package main

import (
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lucvincent/photoloop/config"
	"github.com/lucvincent/photoloop/pkg/api"
	"github.com/lucvincent/photoloop/pkg/detect"
	"github.com/lucvincent/photoloop/pkg/frame"
	"github.com/lucvincent/photoloop/pkg/geocode"
	"github.com/lucvincent/photoloop/pkg/library"
	"github.com/lucvincent/photoloop/pkg/processor"
	"github.com/lucvincent/photoloop/pkg/schedule"
	"github.com/lucvincent/photoloop/pkg/source"
	"github.com/lucvincent/photoloop/util/log"
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store := library.NewStore(cfg.Cache.Directory, cfg.Fingerprint())
	if err := store.Load(); err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}

	lib := library.New(cfg, store)

	engine := processor.New(cfg.Scaling, cfg.KenBurns)
	engine.SetSaliencyDetector(detect.NewEnergySaliency())
	engine.SetAestheticCropper(detect.NewSmartcropAesthetic())
	lib.SetEngine(engine)
	lib.SetMetadataExtractor(detect.NewImagemetaExtractor())

	if cascade := os.Getenv("PHOTOLOOP_CASCADE"); cascade != "" {
		detector, err := detect.NewPigoFaceDetector(cascade, cfg.Scaling.FaceConfidence)
		if err != nil {
			log.Printf("Face detection unavailable: %v", err)
		} else {
			lib.SetFaceDetector(detector)
		}
	}

	// The geocode resolver is an external service client; without one the
	// cache still answers previously resolved coordinates.
	geocoder := geocode.NewService(cfg.Cache.Directory, nil)
	defer geocoder.Close()
	lib.SetGeocoder(geocoder)

	sched := schedule.New(cfg.Schedule)
	f := frame.New(lib, sched, newHeadlessRenderer(cfg))

	lib.RebuildPlaylist()

	// Local directories feed syncs on change, not just on the interval.
	var localPaths []string
	for _, s := range cfg.Sources {
		if s.Enabled && s.Type == "local" && s.Path != "" {
			localPaths = append(localPaths, s.Path)
		}
	}
	if len(localPaths) > 0 {
		watcher, err := source.WatchLocal(localPaths, func() {
			f.RequestSync(library.SyncFlags{})
		})
		if err != nil {
			log.Printf("Local source watching unavailable: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	server := api.NewServer(lib, sched, f)
	server.ApplyConfig = func(c *config.Config) {
		lib.SetConfig(c)
		sched.SetConfig(c.Schedule)
		engine.SetPolicy(c.Scaling, c.KenBurns)
	}
	server.ReloadConfig = func() error {
		reloaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		server.ApplyConfig(reloaded)
		log.Print("Configuration reloaded")
		return nil
	}
	go func() {
		if err := server.Start(cfg.Web.Port); err != nil {
			log.Printf("Control server stopped: %v", err)
		}
	}()
	defer server.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received %s, shutting down...", sig)
		f.Stop()
	}()

	f.Run()
	store.Save()
	log.Print("PhotoLoop stopped")
}

func defaultConfigPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".photoloop", "config.yaml")
	}
	return "config.yaml"
}
