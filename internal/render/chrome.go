package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/chromedp/chromedp"
)

// defaultPlayerScript is the lottie-web build the player page pulls in when
// the caller does not point at a local copy.
const defaultPlayerScript = "https://cdnjs.cloudflare.com/ajax/libs/bodymovin/5.12.2/lottie.min.js"

const playerPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>html,body{margin:0;padding:0;background:#000;overflow:hidden}#stage{width:100vw;height:100vh}</style>
<script src="%s"></script>
</head>
<body>
<div id="stage"></div>
<script>
window.__ready = false;
window.__load = function (data) {
  window.__anim = lottie.loadAnimation({
    container: document.getElementById('stage'),
    renderer: 'svg',
    loop: false,
    autoplay: false,
    animationData: data
  });
  window.__anim.addEventListener('DOMLoaded', function () { window.__ready = true; });
};
</script>
</body>
</html>`

// ChromeOptions configures the headless Chromium engine.
type ChromeOptions struct {
	// PlayerScript overrides the lottie-web location (a file:// URL works
	// for offline render boxes).
	PlayerScript string
	// ExecPath points at a specific Chromium binary; empty means lookup.
	ExecPath string
}

// ChromeEngine renders through headless Chromium driving lottie-web. One
// instance serves one scene: the job runner creates and closes an engine per
// scene so no loaded assets bleed into the next one.
type ChromeEngine struct {
	opts        ChromeOptions
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewChromeEngine prepares an engine; Chromium starts on Load.
func NewChromeEngine(opts ChromeOptions) *ChromeEngine {
	if opts.PlayerScript == "" {
		opts.PlayerScript = defaultPlayerScript
	}
	return &ChromeEngine{opts: opts}
}

func (e *ChromeEngine) Load(ctx context.Context, doc []byte, width, height int) error {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("force-device-scale-factor", "1"),
		chromedp.Flag("mute-audio", true),
	)
	if e.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(e.opts.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tab, cancelTab := chromedp.NewContext(allocCtx)
	e.tab, e.cancelTab, e.cancelAlloc = tab, cancelTab, cancelAlloc

	page := fmt.Sprintf(playerPage, e.opts.PlayerScript)
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(page))

	// Документ — готовый JSON, подставляем его текстом в вызов __load.
	loadExpr := fmt.Sprintf("window.__load(%s); true", doc)

	return chromedp.Run(tab,
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURL),
		chromedp.Poll("typeof lottie !== 'undefined' && typeof window.__load === 'function'", nil,
			chromedp.WithPollingInterval(50*time.Millisecond)),
		chromedp.Evaluate(loadExpr, nil),
	)
}

func (e *ChromeEngine) AwaitReady(ctx context.Context) error {
	tab, cancel := mergeDeadline(e.tab, ctx)
	defer cancel()
	return chromedp.Run(tab,
		chromedp.Poll("window.__ready === true", nil,
			chromedp.WithPollingInterval(100*time.Millisecond)),
	)
}

func (e *ChromeEngine) Seek(ctx context.Context, frame int) error {
	tab, cancel := mergeDeadline(e.tab, ctx)
	defer cancel()
	expr := fmt.Sprintf("window.__anim.goToAndStop(%d, true); true", frame)
	return chromedp.Run(tab, chromedp.Evaluate(expr, nil))
}

func (e *ChromeEngine) CaptureFrame(ctx context.Context) (image.Image, error) {
	tab, cancel := mergeDeadline(e.tab, ctx)
	defer cancel()
	var buf []byte
	if err := chromedp.Run(tab, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

func (e *ChromeEngine) Close() error {
	if e.cancelTab != nil {
		e.cancelTab()
	}
	if e.cancelAlloc != nil {
		e.cancelAlloc()
	}
	e.tab = nil
	return nil
}

// mergeDeadline applies the caller context's deadline/cancellation to the
// long-lived tab context chromedp operations must run on.
func mergeDeadline(tab, caller context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := caller.Deadline(); ok {
		return context.WithDeadline(tab, deadline)
	}
	ctx, cancel := context.WithCancel(tab)
	stop := context.AfterFunc(caller, cancel)
	return ctx, func() { stop(); cancel() }
}
