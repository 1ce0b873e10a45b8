package twitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"xscraper/pkg/logger"
	"xscraper/pkg/record"
)

// Replay serves saved x.com pages from a directory. Each *.html file is one
// scroll position, in lexical file name order.
type Replay struct {
	Dir     string
	BaseURL string
	Logger  logger.Logger
}

// NewReplay creates a replay opener over dir
func NewReplay(dir string, log logger.Logger) *Replay {
	return &Replay{Dir: dir, BaseURL: "https://x.com", Logger: logger.OrNop(log)}
}

// Open parses every page for the surface. A "<surface>" subdirectory is
// preferred when present so one directory can hold several captures.
func (r *Replay) Open(ctx context.Context, surface Surface, subject string) (PageView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := r.Dir
	if info, err := os.Stat(filepath.Join(dir, string(surface))); err == nil && info.IsDir() {
		dir = filepath.Join(dir, string(surface))
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to list replay pages: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no saved pages (*.html) in %s", dir)
	}
	sort.Strings(files)

	docs := make([]*goquery.Document, 0, len(files))
	for _, path := range files {
		doc, err := loadDocument(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if err := stateError(DetectState(docs[0]), subject); err != nil {
		return nil, err
	}

	baseURL := r.BaseURL
	if baseURL == "" {
		baseURL = "https://x.com"
	}
	view := &ReplayView{
		docs:    docs,
		surface: surface,
		baseURL: baseURL,
		logger:  logger.OrNop(r.Logger),
	}
	if surface == SurfaceReplies {
		view.excludeID = StatusID(subject)
	}
	view.logger.InfoWithFields("Replaying saved pages", map[string]interface{}{
		"dir":   dir,
		"pages": len(docs),
	})
	return view, nil
}

func loadDocument(path string) (*goquery.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay page: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse replay page %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// ReplayView walks saved pages. Advancing past the last page stays on it, so
// the collector stops through its stability rule.
type ReplayView struct {
	docs      []*goquery.Document
	pos       int
	surface   Surface
	baseURL   string
	excludeID string
	logger    logger.Logger
}

// ExtractPage parses the current page
func (v *ReplayView) ExtractPage(ctx context.Context) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := v.docs[v.pos]
	if v.surface.Kind() == KindProfile {
		return profileRecords(parseProfiles(doc), v.baseURL), nil
	}
	return postRecords(parsePosts(doc), v.baseURL, v.excludeID), nil
}

// AdvancePage moves to the next saved page
func (v *ReplayView) AdvancePage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.pos < len(v.docs)-1 {
		v.pos++
	}
	return nil
}

// Close releases nothing; parsed pages are garbage collected
func (v *ReplayView) Close() error { return nil }

// Position returns the index of the current page
func (v *ReplayView) Position() int { return v.pos }

// DetectState classifies a parsed page the same way the live state script does
func DetectState(doc *goquery.Document) PageState {
	if doc.Find(SelLoginButton).Length() > 0 || doc.Find(SelLoginForm).Length() > 0 {
		return PageLogin
	}
	for _, sel := range []string{SelEmptyState, SelErrorDetail} {
		text := strings.ToLower(doc.Find(sel).First().Text())
		if text == "" {
			continue
		}
		for _, phrase := range notFoundPhrases {
			if strings.Contains(text, strings.ToLower(phrase)) {
				return PageNotFound
			}
		}
	}
	return PageOK
}

// parseProfiles reads every UserCell of a parsed page
func parseProfiles(doc *goquery.Document) []rawProfile {
	var out []rawProfile
	doc.Find(SelUserCell).Each(func(_ int, cell *goquery.Selection) {
		link := cell.Find(SelUserLink).First()
		href, _ := link.Attr("href")
		name := link.Find("span").First().Text()
		if name == "" {
			name = link.Text()
		}
		avatar, _ := cell.Find(SelAvatar).First().Attr("src")
		out = append(out, rawProfile{
			Handle:      firstPathSegment(href),
			DisplayName: strings.TrimSpace(name),
			Bio:         strings.TrimSpace(cell.Find(SelUserBio).First().Text()),
			Verified:    cell.Find(SelVerified).Length() > 0,
			FollowsYou:  cell.Find(SelFollowsYou).Length() > 0,
			AvatarURL:   avatar,
		})
	})
	return out
}

// parsePosts reads every tweet article of a parsed page
func parsePosts(doc *goquery.Document) []rawPost {
	var out []rawPost
	doc.Find(SelTweet).Each(func(_ int, article *goquery.Selection) {
		timeEl := article.Find("time").First()
		anchor := timeEl.Closest("a")
		if anchor.Length() == 0 {
			anchor = article.Find(`a[href*="/status/"]`).First()
		}
		href, _ := anchor.Attr("href")
		userLink := article.Find(SelUserName).Find(`a[href^="/"]`).First()
		userHref, _ := userLink.Attr("href")
		createdAt, _ := timeEl.Attr("datetime")
		text := article.Find(SelTweetText).First()

		var media []string
		article.Find(SelTweetPhoto).Each(func(_ int, img *goquery.Selection) {
			if src, ok := img.Attr("src"); ok {
				media = append(media, src)
			}
		})
		article.Find(SelVideo).Each(func(_ int, video *goquery.Selection) {
			if poster, ok := video.Attr("poster"); ok && poster != "" {
				media = append(media, poster)
			}
		})
		var links []string
		text.Find(`a[href^="http"]`).Each(func(_ int, a *goquery.Selection) {
			if h, ok := a.Attr("href"); ok {
				links = append(links, h)
			}
		})

		likes := article.Find(SelLikeButton).First()
		if likes.Length() == 0 {
			likes = article.Find(SelUnlikeButton).First()
		}

		out = append(out, rawPost{
			ID:          StatusID(href),
			Author:      firstPathSegment(userHref),
			DisplayName: strings.TrimSpace(userLink.Text()),
			Text:        strings.TrimSpace(text.Text()),
			CreatedAt:   createdAt,
			URL:         href,
			Replies:     ariaLabel(article.Find(SelReplyButton).First()),
			Reposts:     ariaLabel(article.Find(SelRepostButton).First()),
			Likes:       ariaLabel(likes),
			Views:       ariaLabel(article.Find(SelViews).First()),
			Media:       media,
			Links:       links,
			Social:      article.Find(SelSocialCtx).First().Text(),
			Quote:       article.Find(SelQuote).Length() > 0,
		})
	})
	return out
}

func ariaLabel(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	if label, ok := sel.Attr("aria-label"); ok {
		return label
	}
	return sel.Text()
}

func firstPathSegment(href string) string {
	for _, part := range strings.Split(href, "/") {
		if part != "" {
			return part
		}
	}
	return ""
}
