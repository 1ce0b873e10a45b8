package twitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/retry"
)

// ErrAlreadyInState is returned when the account already has the requested relationship
var ErrAlreadyInState = errors.New("relationship already in requested state")

const (
	relFollowing    = "following"
	relNotFollowing = "not_following"
)

// BrowserActor follows and unfollows accounts through the profile page buttons
type BrowserActor struct {
	browser *Browser
	logger  logger.Logger
}

// NewActor creates an actor sharing the browser session
func NewActor(b *Browser) *BrowserActor {
	return &BrowserActor{browser: b, logger: b.logger.WithField("component", "actor")}
}

// Follow follows handle
func (a *BrowserActor) Follow(ctx context.Context, handle string) error {
	return a.setRelationship(ctx, handle, relFollowing)
}

// Unfollow unfollows handle, confirming the dialog X shows
func (a *BrowserActor) Unfollow(ctx context.Context, handle string) error {
	return a.setRelationship(ctx, handle, relNotFollowing)
}

func (a *BrowserActor) setRelationship(ctx context.Context, handle, want string) error {
	handle = Handle(handle)
	wait := a.browser.opts.WaitTimeout

	tabCtx, cancel := chromedp.NewContext(a.browser.browserCtx)
	defer cancel()
	if err := runWith(ctx, tabCtx, 0); err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, "failed to open tab", err)
	}

	target := ProfileURL(a.browser.opts.BaseURL, handle)
	if err := runWith(ctx, tabCtx, a.browser.navigationTimeout(), chromedp.Navigate(target)); err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, fmt.Sprintf("failed to load %s", target), err)
	}

	buttons := SelPrimaryColumn + " " + SelFollowButton + ", " + SelPrimaryColumn + " " + SelUnfollowButton
	if err := runWith(ctx, tabCtx, wait, chromedp.WaitVisible(buttons, chromedp.ByQuery)); err != nil {
		var state string
		if evalErr := runWith(ctx, tabCtx, wait, chromedp.Evaluate(stateScript, &state)); evalErr == nil {
			if stateErr := stateError(PageState(state), handle); stateErr != nil {
				return stateErr
			}
		}
		return errs.Wrap(errs.ErrorTypeExtraction, "follow button not found", err)
	}

	current, err := a.relationship(ctx, tabCtx)
	if err != nil {
		return err
	}
	if current == want {
		return ErrAlreadyInState
	}

	log := a.logger.WithFields(map[string]interface{}{"handle": handle, "want": want})
	if want == relFollowing {
		err = runWith(ctx, tabCtx, wait, chromedp.Click(SelPrimaryColumn+" "+SelFollowButton, chromedp.ByQuery, chromedp.NodeVisible))
	} else {
		err = runWith(ctx, tabCtx, wait,
			chromedp.Click(SelPrimaryColumn+" "+SelUnfollowButton, chromedp.ByQuery, chromedp.NodeVisible),
			chromedp.WaitVisible(SelConfirmSheet, chromedp.ByQuery),
			chromedp.Click(SelConfirmSheet, chromedp.ByQuery),
		)
	}
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, "failed to click relationship button", err)
	}

	// The button flips once the request succeeds; a throttled account keeps the old state.
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		current, err = a.relationship(ctx, tabCtx)
		if err != nil {
			return err
		}
		if current == want {
			log.Info("Relationship updated")
			return nil
		}
		if err := retry.Wait(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
	return errs.New(errs.ErrorTypeRateLimit, fmt.Sprintf("relationship with @%s did not change, account may be throttled", handle))
}

func (a *BrowserActor) relationship(ctx, tabCtx context.Context) (string, error) {
	var rel string
	if err := runWith(ctx, tabCtx, a.browser.opts.WaitTimeout, chromedp.Evaluate(relationshipScript, &rel)); err != nil {
		return "", errs.Wrap(errs.ErrorTypeExtraction, "failed to read relationship", err)
	}
	return rel, nil
}
