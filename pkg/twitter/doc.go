// Package twitter adapts X (Twitter) pages to the collector.
//
// A Browser drives a real Chrome session through chromedp and opens one tab
// per collection. A Replay serves previously saved pages from disk so runs can
// be reproduced offline. Both share the selectors in this package and turn
// page content into records of two kinds:
//
//   - profiles (followers, following, verified followers) keyed by handle
//   - posts (timeline, likes, replies, hashtag, search) keyed by status id
//
// The package also exposes a BrowserActor for follow/unfollow actions and a
// MediaClient for fetching attached photos and video posters.
package twitter
