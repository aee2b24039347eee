package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "random", cfg.Display.Order)
	assert.Equal(t, "balanced", cfg.Scaling.Mode)
	assert.Equal(t, 15, cfg.Scaling.MaxCropPercent)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
display:
  order: chronological
scaling:
  mode: fill
  max_crop_percent: 30
sources:
  - name: Family
    type: remote_album
    url: https://photos.example.com/share/abc
    enabled: true
  - name: NAS
    type: local
    path: /mnt/photos
    enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "chronological", cfg.Display.Order)
	assert.Equal(t, "fill", cfg.Scaling.Mode)
	assert.Equal(t, 30, cfg.Scaling.MaxCropPercent)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "Family", cfg.Sources[0].Label())
	assert.True(t, cfg.Sources[0].Enabled)
	assert.False(t, cfg.Sources[1].Enabled)
}

func TestValidationRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"crop percent too high", "scaling:\n  max_crop_percent: 60\n"},
		{"bad order", "display:\n  order: shiniest_first\n"},
		{"bad mode", "scaling:\n  mode: squish\n"},
		{"bad schedule time", "schedule:\n  weekday:\n    - start_time: \"25:00\"\n      end_time: \"26:00\"\n      mode: black\n"},
		{"remote without url", "sources:\n  - name: X\n    type: remote_album\n    enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestEndOfDayEventTimeValid(t *testing.T) {
	path := writeConfig(t, `
schedule:
  enabled: true
  weekday:
    - start_time: "00:00"
      end_time: "24:00"
      mode: slideshow
`)
	_, err := Load(path)
	assert.NoError(t, err)
}

func TestSourceLabelFallsBackToLocation(t *testing.T) {
	s := SourceConfig{Type: "remote_album", URL: "https://x.example/a"}
	assert.Equal(t, "https://x.example/a", s.Label())

	s = SourceConfig{Type: "local", Path: "/mnt/photos"}
	assert.Equal(t, "/mnt/photos", s.Label())

	s.Name = "NAS"
	assert.Equal(t, "NAS", s.Label())
}

func TestFingerprintChangeDetection(t *testing.T) {
	base := Default().Fingerprint()

	changed := Default()
	changed.Sync.MaxDimension = 1920
	assert.True(t, base.AcquisitionChanged(changed.Fingerprint()))
	assert.False(t, base.ScalingChanged(changed.Fingerprint()))

	changed = Default()
	changed.Scaling.MaxCropPercent = 5
	fp := changed.Fingerprint()
	assert.False(t, base.AcquisitionChanged(fp))
	assert.True(t, base.ScalingChanged(fp))
	assert.False(t, base.FaceChanged(fp))

	changed = Default()
	changed.Scaling.FaceDetection = false
	fp = changed.Fingerprint()
	assert.True(t, base.FaceChanged(fp))
	assert.False(t, base.ScalingChanged(fp))
}
