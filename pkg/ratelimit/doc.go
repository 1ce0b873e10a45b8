// Package ratelimit paces traffic against the target site.
//
// TokenBucket (on golang.org/x/time/rate) and SlidingWindow cap how many
// operations run per period. The media downloader shares a token bucket
// across workers; the action runner enforces an hourly sliding window on
// follow/unfollow clicks. Pacer draws the jittered delay the collector waits
// after every page advance.
//
//	limiter := ratelimit.NewSlidingWindow(cfg.Actions.MaxPerHour, time.Hour)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
