package config

// SettingsFingerprint is the canonical summary of every setting that
// influences a stored artifact. It is persisted on the catalog header so
// the loader can detect which artifacts a config change invalidates:
// acquisition changes discard files, face-policy changes discard faces and
// display params, scaling changes discard display params only.
type SettingsFingerprint struct {
	MaxDimension   int                `json:"max_dimension"`
	FullResolution bool               `json:"full_resolution"`
	Scaling        ScalingFingerprint `json:"scaling"`
	FaceDetection  FaceFingerprint    `json:"face_detection"`
}

// ScalingFingerprint covers the crop-policy settings.
type ScalingFingerprint struct {
	Mode              string  `json:"mode"`
	MaxCropPercent    int     `json:"max_crop_percent"`
	SmartCropMethod   string  `json:"smart_crop_method"`
	FacePosition      string  `json:"face_position"`
	FallbackCrop      string  `json:"fallback_crop"`
	SaliencyThreshold float64 `json:"saliency_threshold"`
	SaliencyCoverage  float64 `json:"saliency_coverage"`
	CropBias          string  `json:"crop_bias"`
}

// FaceFingerprint covers the face-detection policy.
type FaceFingerprint struct {
	Enabled    bool    `json:"enabled"`
	Confidence float64 `json:"confidence_threshold"`
	Model      string  `json:"model_version"`
}

// Fingerprint builds the fingerprint for the current configuration.
func (c *Config) Fingerprint() SettingsFingerprint {
	return SettingsFingerprint{
		MaxDimension:   c.Sync.MaxDimension,
		FullResolution: c.Sync.FullResolution,
		Scaling: ScalingFingerprint{
			Mode:              c.Scaling.Mode,
			MaxCropPercent:    c.Scaling.MaxCropPercent,
			SmartCropMethod:   c.Scaling.SmartCropMethod,
			FacePosition:      c.Scaling.FacePosition,
			FallbackCrop:      c.Scaling.FallbackCrop,
			SaliencyThreshold: c.Scaling.SaliencyThreshold,
			SaliencyCoverage:  c.Scaling.SaliencyCoverage,
			CropBias:          c.Scaling.CropBias,
		},
		FaceDetection: FaceFingerprint{
			Enabled:    c.Scaling.FaceDetection,
			Confidence: c.Scaling.FaceConfidence,
			Model:      c.Scaling.FaceModel,
		},
	}
}

// AcquisitionChanged reports whether the image-acquisition half differs.
// A change here means every downloaded file is at the wrong resolution.
func (f SettingsFingerprint) AcquisitionChanged(other SettingsFingerprint) bool {
	return f.MaxDimension != other.MaxDimension || f.FullResolution != other.FullResolution
}

// ScalingChanged reports whether the crop-policy half differs.
func (f SettingsFingerprint) ScalingChanged(other SettingsFingerprint) bool {
	return f.Scaling != other.Scaling
}

// FaceChanged reports whether the face-detection policy differs.
func (f SettingsFingerprint) FaceChanged(other SettingsFingerprint) bool {
	return f.FaceDetection != other.FaceDetection
}
