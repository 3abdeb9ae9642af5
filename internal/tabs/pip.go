package tabs

import (
	"context"

	"github.com/lotas/flowtabs/internal/applog"
)

// Scripts run inside the page. They resolve to true only when the page
// confirms the transition.
const (
	enterPipScript = `(async () => {
  const videos = Array.from(document.querySelectorAll("video")).filter(
    (v) => !v.paused && !v.ended && v.readyState > 2
  );
  if (videos.length === 0 || document.pictureInPictureElement === videos[0]) return null;
  try {
    await videos[0].requestPictureInPicture();
    return true;
  } catch (e) {
    return false;
  }
})()`
	exitPipScript = `(() => {
  if (document.pictureInPictureElement) {
    document.exitPictureInPicture();
    return true;
  }
  return false;
})()`
)

// TryEnterPiP asks the page to put its playing video into picture-in-picture.
// It returns false without error when there is no surface or the page did not
// confirm.
func (t *Tab) TryEnterPiP(ctx context.Context) bool {
	if !t.runPipScript(ctx, enterPipScript, "tab.pip.enter") {
		return false
	}
	t.setPip(true)
	return true
}

// TryExitPiP leaves picture-in-picture.
func (t *Tab) TryExitPiP(ctx context.Context) bool {
	if !t.runPipScript(ctx, exitPipScript, "tab.pip.exit") {
		return false
	}
	t.setPip(false)
	return true
}

func (t *Tab) runPipScript(ctx context.Context, src, event string) bool {
	s := t.surface
	if t.destroyed || s == nil {
		return false
	}
	res, err := s.ExecuteScript(ctx, src)
	if err != nil {
		applog.Error(event, err, "tab", t.id)
		return false
	}
	ok, _ := res.(bool)
	// The surface may have gone away while the script ran.
	if !ok || t.destroyed || t.surface != s {
		return false
	}
	return true
}
