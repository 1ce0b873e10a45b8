package twitter

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"xscraper/pkg/collector"
	"xscraper/pkg/config"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/record"
)

// PageView is a collector.View bound to one opened page
type PageView interface {
	collector.View
	Close() error
}

// Opener opens a view over a surface of a subject
type Opener interface {
	Open(ctx context.Context, surface Surface, subject string) (PageView, error)
}

// Session holds the X session cookies of a logged in account
type Session struct {
	AuthToken string
	CSRFToken string
}

// Valid reports whether the session carries an auth token
func (s Session) Valid() bool {
	return strings.TrimSpace(s.AuthToken) != ""
}

// BrowserOptions configures the Chrome instance
type BrowserOptions struct {
	Headless     bool
	ChromePath   string
	UserAgent    string
	BaseURL      string
	PageTimeout  time.Duration
	WaitTimeout  time.Duration
	WindowWidth  int
	WindowHeight int
	Session      Session
	Logger       logger.Logger
}

// BrowserOptionsFromConfig maps the browser section of the configuration
func BrowserOptionsFromConfig(cfg *config.Config, session Session, log logger.Logger) BrowserOptions {
	return BrowserOptions{
		Headless:     cfg.Browser.Headless,
		ChromePath:   cfg.Browser.ChromePath,
		UserAgent:    cfg.Account.UserAgent,
		BaseURL:      cfg.Browser.BaseURL,
		PageTimeout:  cfg.Browser.PageTimeout,
		WaitTimeout:  cfg.Browser.WaitTimeout,
		WindowWidth:  cfg.Browser.WindowWidth,
		WindowHeight: cfg.Browser.WindowHeight,
		Session:      session,
		Logger:       log,
	}
}

// Browser owns a Chrome process and opens one tab per view
type Browser struct {
	opts          BrowserOptions
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        logger.Logger
}

// NewBrowser starts Chrome and installs the session cookies
func NewBrowser(ctx context.Context, opts BrowserOptions) (*Browser, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://x.com"
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 30 * time.Second
	}
	if opts.WindowWidth <= 0 || opts.WindowHeight <= 0 {
		opts.WindowWidth, opts.WindowHeight = 1280, 2000
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
	)

	b := &Browser{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        log,
	}

	// The first Run allocates the browser; it must use the un-derived context.
	if err := runWith(ctx, browserCtx, 0); err != nil {
		b.Close()
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "failed to start browser", err)
	}

	if opts.Session.Valid() {
		if err := runWith(ctx, browserCtx, opts.WaitTimeout, b.cookieAction()); err != nil {
			b.Close()
			return nil, errs.Wrap(errs.ErrorTypeAuth, "failed to install session cookies", err)
		}
	} else {
		log.Warn("No session configured, X will show a login wall for most surfaces")
	}

	log.InfoWithFields("Browser started", map[string]interface{}{
		"headless": opts.Headless,
		"base_url": opts.BaseURL,
	})
	return b, nil
}

func (b *Browser) cookieAction() chromedp.Action {
	domain := cookieDomain(b.opts.BaseURL)
	return chromedp.ActionFunc(func(ctx context.Context) error {
		expires := cdp.TimeSinceEpoch(time.Now().AddDate(1, 0, 0))
		cookies := []struct {
			Name, Value string
			HTTPOnly    bool
		}{
			{Name: "auth_token", Value: b.opts.Session.AuthToken, HTTPOnly: true},
			{Name: "ct0", Value: b.opts.Session.CSRFToken},
		}
		for _, c := range cookies {
			if c.Value == "" {
				continue
			}
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(domain).
				WithPath("/").
				WithSecure(true).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(network.CookieSameSiteNone).
				WithExpires(&expires).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

// Open navigates a fresh tab to the surface page and checks the subject is visible
func (b *Browser) Open(ctx context.Context, surface Surface, subject string) (PageView, error) {
	target, err := surface.URL(b.opts.BaseURL, subject)
	if err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	view := &BrowserView{
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
		surface:   surface,
		subject:   subject,
		baseURL:   b.opts.BaseURL,
		wait:      b.opts.WaitTimeout,
		logger: b.logger.WithFields(map[string]interface{}{
			"surface": string(surface),
			"subject": subject,
		}),
	}
	if surface == SurfaceReplies {
		view.excludeID = StatusID(subject)
	}

	if err := runWith(ctx, tabCtx, 0); err != nil {
		view.Close()
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "failed to open tab", err)
	}

	view.logger.WithField("url", target).Info("Opening page")
	if err := runWith(ctx, tabCtx, b.navigationTimeout(), chromedp.Navigate(target)); err != nil {
		view.Close()
		return nil, errs.Wrap(errs.ErrorTypeNetwork, fmt.Sprintf("failed to load %s", target), err)
	}

	if err := view.waitReady(ctx); err != nil {
		view.logger.WithError(err).Warn("Page did not render list content in time")
	}
	if err := view.checkState(ctx); err != nil {
		view.Close()
		return nil, err
	}
	return view, nil
}

func (b *Browser) navigationTimeout() time.Duration {
	if b.opts.PageTimeout > 0 && b.opts.PageTimeout < 2*b.opts.WaitTimeout {
		return b.opts.PageTimeout
	}
	return 2 * b.opts.WaitTimeout
}

// Close shuts the browser down
func (b *Browser) Close() error {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	return nil
}

// BrowserView is a live page scrolled by the collector
type BrowserView struct {
	tabCtx    context.Context
	tabCancel context.CancelFunc
	surface   Surface
	subject   string
	baseURL   string
	excludeID string
	wait      time.Duration
	logger    logger.Logger
}

// ExtractPage reads the records currently rendered on the page
func (v *BrowserView) ExtractPage(ctx context.Context) ([]record.Record, error) {
	if v.surface.Kind() == KindProfile {
		var raw []rawProfile
		if err := runWith(ctx, v.tabCtx, v.wait, chromedp.Evaluate(profilesScript, &raw)); err != nil {
			return nil, v.evalError(ctx, "extract profiles", err)
		}
		if len(raw) == 0 {
			if err := v.checkState(ctx); err != nil {
				return nil, err
			}
		}
		return profileRecords(raw, v.baseURL), nil
	}

	var raw []rawPost
	if err := runWith(ctx, v.tabCtx, v.wait, chromedp.Evaluate(postsScript, &raw)); err != nil {
		return nil, v.evalError(ctx, "extract posts", err)
	}
	if len(raw) == 0 {
		if err := v.checkState(ctx); err != nil {
			return nil, err
		}
	}
	return postRecords(raw, v.baseURL, v.excludeID), nil
}

// AdvancePage scrolls to the bottom so the next batch is requested
func (v *BrowserView) AdvancePage(ctx context.Context) error {
	var height int64
	if err := runWith(ctx, v.tabCtx, v.wait, chromedp.Evaluate(scrollScript, &height)); err != nil {
		return v.evalError(ctx, "scroll", err)
	}
	v.logger.WithField("scroll_height", height).Debug("Scrolled")
	return nil
}

// Close closes the tab
func (v *BrowserView) Close() error {
	if v.tabCancel != nil {
		v.tabCancel()
	}
	return nil
}

func (v *BrowserView) waitReady(ctx context.Context) error {
	ready := fmt.Sprintf(`!!document.querySelector(%s)`, jsString(strings.Join([]string{
		SelCell, SelEmptyState, SelErrorDetail, SelLoginButton, SelLoginForm,
	}, ", ")))
	var found bool
	return runWith(ctx, v.tabCtx, v.wait+time.Second,
		chromedp.Poll(ready, &found, chromedp.WithPollingInterval(250*time.Millisecond), chromedp.WithPollingTimeout(v.wait)))
}

func (v *BrowserView) checkState(ctx context.Context) error {
	var state string
	if err := runWith(ctx, v.tabCtx, v.wait, chromedp.Evaluate(stateScript, &state)); err != nil {
		return errs.Wrap(errs.ErrorTypeExtraction, "failed to read page state", err)
	}
	return stateError(PageState(state), v.subject)
}

func (v *BrowserView) evalError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	errType := errs.ErrorTypeExtraction
	if op == "scroll" {
		errType = errs.ErrorTypeAdvanceStall
	}
	return errs.Wrap(errType, op+" failed", err)
}

// stateError maps a classified page to the terminal error it implies
func stateError(state PageState, subject string) error {
	switch state {
	case PageNotFound:
		return errs.SubjectNotFound(subject)
	case PageLogin:
		return errs.New(errs.ErrorTypeAuth, "x.com requires a logged in session; run 'xscraper auth login'")
	default:
		return nil
	}
}

// runWith runs actions on a chromedp context while honouring the caller's
// context. A zero timeout runs directly on chromedpCtx, which is required for
// the first Run that allocates a browser or tab.
func runWith(ctx, chromedpCtx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if timeout <= 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return chromedp.Run(chromedpCtx, actions...)
	}

	runCtx, cancel := context.WithTimeout(chromedpCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func cookieDomain(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return ".x.com"
	}
	return "." + strings.TrimPrefix(u.Hostname(), "www.")
}
