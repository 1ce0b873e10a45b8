package twitter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// MediaClient fetches photos and video posters from the X media CDN
type MediaClient struct {
	httpClient *http.Client
	headers    map[string]string
	maxSize    int64
	logger     logger.Logger
}

// NewMediaClient creates a media client. maxSize of 0 disables the size limit.
func NewMediaClient(timeout time.Duration, userAgent string, maxSize int64, log logger.Logger) *MediaClient {
	if log == nil {
		log = logger.GetLogger()
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &MediaClient{
		httpClient: &http.Client{Timeout: timeout},
		headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "image/avif,image/webp,image/apng,image/*,*/*;q=0.8",
			"Referer":    "https://x.com/",
		},
		maxSize: maxSize,
		logger:  log,
	}
}

// Download fetches a media url and returns its bytes
func (c *MediaClient) Download(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, OriginalMediaURL(mediaURL), nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "invalid media url", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorWithFields("media request failed", map[string]interface{}{
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "media request failed", err)
	}
	defer resp.Body.Close()

	if err := checkResponseStatus(resp); err != nil {
		return nil, err
	}

	body := io.Reader(resp.Body)
	if c.maxSize > 0 {
		body = io.LimitReader(resp.Body, c.maxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "failed to read media body", err)
	}
	if c.maxSize > 0 && int64(len(data)) > c.maxSize {
		return nil, errs.New(errs.ErrorTypeUnknown, fmt.Sprintf("media larger than %d bytes", c.maxSize))
	}

	c.logger.DebugWithFields("media downloaded", map[string]interface{}{
		"url":      req.URL.String(),
		"size":     len(data),
		"duration": time.Since(start),
	})
	return data, nil
}

func checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "media CDN rate limit", Code: resp.StatusCode}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &errs.Error{Type: errs.ErrorTypeAuth, Message: "media not accessible", Code: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return &errs.Error{Type: errs.ErrorTypeUnknown, Message: "media not found", Code: resp.StatusCode}
	case errs.IsRetryableStatusCode(resp.StatusCode):
		return &errs.Error{Type: errs.ErrorTypeNetwork, Message: "media CDN unavailable", Code: resp.StatusCode}
	default:
		return &errs.Error{Type: errs.ErrorTypeUnknown, Message: "unexpected media response", Code: resp.StatusCode}
	}
}

// OriginalMediaURL asks pbs.twimg.com for the largest rendition of a photo
func OriginalMediaURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || !strings.HasSuffix(u.Hostname(), "twimg.com") || !strings.HasPrefix(u.Path, "/media/") {
		return raw
	}
	q := u.Query()
	q.Set("name", "orig")
	u.RawQuery = q.Encode()
	return u.String()
}

// MediaExtension guesses a file extension from a media url
func MediaExtension(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ".jpg"
	}
	if format := u.Query().Get("format"); format != "" {
		return "." + format
	}
	if i := strings.LastIndex(u.Path, "."); i >= 0 && i > strings.LastIndex(u.Path, "/") {
		return u.Path[i:]
	}
	return ".jpg"
}
