package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/lotas/flowtabs/internal/applog"
	"github.com/lotas/flowtabs/internal/tabs"
	"github.com/lotas/flowtabs/internal/types"
)

// ChromeOptions configure the Chrome process backing ChromeFactory.
type ChromeOptions struct {
	ExecPath string
	Headless bool
}

// ChromeFactory opens every tab surface as a target of one shared Chrome
// process.
type ChromeFactory struct {
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewChromeFactory prepares the allocator. Chrome itself starts with the
// first attached surface.
func NewChromeFactory(ctx context.Context, opts ChromeOptions) *ChromeFactory {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	return &ChromeFactory{allocCtx: allocCtx, cancel: cancel}
}

// Close stops Chrome.
func (f *ChromeFactory) Close() { f.cancel() }

func (f *ChromeFactory) NewSurface(tabID int, profileID string) tabs.Surface {
	return &ChromeSurface{parent: f.allocCtx, tabID: tabID}
}

// ChromeSurface drives one Chrome target. All calls come from the manager
// goroutine.
type ChromeSurface struct {
	parent context.Context
	tabID  int

	ctx      context.Context
	cancel   context.CancelFunc
	windowID int
	visible  bool
	bounds   types.Rect
}

func (s *ChromeSurface) Attach(windowID int, url string) error {
	if s.ctx != nil {
		return nil
	}
	ctx, cancel := chromedp.NewContext(s.parent)
	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		cancel()
		return fmt.Errorf("open target for tab %d: %w", s.tabID, err)
	}
	s.ctx, s.cancel, s.windowID = ctx, cancel, windowID
	return nil
}

func (s *ChromeSurface) Detach() {
	if s.cancel != nil {
		s.cancel()
	}
	s.ctx, s.cancel = nil, nil
}

func (s *ChromeSurface) MoveToWindow(windowID int) { s.windowID = windowID }

func (s *ChromeSurface) Navigate(url string) error {
	if s.ctx == nil {
		return ErrDetached
	}
	return chromedp.Run(s.ctx, chromedp.Navigate(url))
}

func (s *ChromeSurface) SetBounds(r types.Rect) {
	s.bounds = r
	if s.ctx == nil || r.Width <= 0 || r.Height <= 0 {
		return
	}
	if err := chromedp.Run(s.ctx, chromedp.EmulateViewport(int64(r.Width), int64(r.Height))); err != nil {
		applog.Error("surface.viewport", err, "tab", s.tabID)
	}
}

// SetVisible only records the flag; a Chrome target has no window of its
// own to hide.
func (s *ChromeSurface) SetVisible(visible bool) { s.visible = visible }

func (s *ChromeSurface) ExecuteScript(ctx context.Context, src string) (any, error) {
	if s.ctx == nil {
		return nil, ErrDetached
	}
	// Run on the target, but give up when the caller does.
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var res any
	err := chromedp.Run(runCtx, chromedp.Evaluate(src, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if errors.Is(err, chromedp.ErrJSUndefined) || errors.Is(err, chromedp.ErrJSNull) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
