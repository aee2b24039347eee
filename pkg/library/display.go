package library

import (
	"github.com/lucvincent/photoloop/pkg/media"
	"github.com/lucvincent/photoloop/pkg/processor"
	"github.com/lucvincent/photoloop/util/log"
)

// SetEngine attaches the display-parameter engine.
func (l *Library) SetEngine(e *processor.Engine) { l.engine = e }

// DisplayParams returns the memoized display parameters for an entry,
// computing and persisting them when absent or stale for the requested
// resolution. Also kicks off lazy annotation for the entry.
func (l *Library) DisplayParams(e media.Entry, screenW, screenH int) media.DisplayParams {
	l.MaybeGeocode(e)

	if dp := e.DisplayParams; dp != nil && dp.ScreenWidth == screenW && dp.ScreenHeight == screenH {
		return *dp
	}

	if l.engine == nil {
		return media.DisplayParams{
			ScreenWidth:  screenW,
			ScreenHeight: screenH,
			CropRegion:   media.FullFrame(),
		}
	}

	faces := l.EnsureFaces(e)
	params := l.engine.Compute(e, faces, screenW, screenH, l.Config().Display.PhotoDurationSeconds)

	l.store.Update(e.MediaID, func(en *media.Entry) {
		p := params
		en.DisplayParams = &p
	})
	log.Debugf("Computed display params for %s at %dx%d", e.MediaID, screenW, screenH)
	return params
}
