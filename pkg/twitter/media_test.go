package twitter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
)

func TestMediaClientDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			assert.NotEmpty(t, r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte("jpegdata"))
		case "/big.jpg":
			_, _ = w.Write(make([]byte, 64))
		case "/slow":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/private":
			w.WriteHeader(http.StatusForbidden)
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewMediaClient(5*time.Second, "", 32, logger.NewNopLogger())
	ctx := context.Background()

	data, err := c.Download(ctx, srv.URL+"/ok.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(data))

	_, err = c.Download(ctx, srv.URL+"/big.jpg")
	assert.Error(t, err)

	_, err = c.Download(ctx, srv.URL+"/slow")
	assert.True(t, errs.IsType(err, errs.ErrorTypeRateLimit))

	_, err = c.Download(ctx, srv.URL+"/private")
	assert.True(t, errs.IsType(err, errs.ErrorTypeAuth))

	_, err = c.Download(ctx, srv.URL+"/broken")
	assert.True(t, errs.IsType(err, errs.ErrorTypeNetwork))
	assert.True(t, errs.IsRetryable(errs.TypeOf(err)))

	_, err = c.Download(ctx, srv.URL+"/gone")
	assert.Error(t, err)
	assert.False(t, errs.IsRetryable(errs.TypeOf(err)))
}

func TestMediaURLHelpers(t *testing.T) {
	assert.Equal(t, "https://pbs.twimg.com/media/AbC?format=jpg&name=orig",
		OriginalMediaURL("https://pbs.twimg.com/media/AbC?format=jpg&name=small"))
	assert.Equal(t, "https://example.com/a.png", OriginalMediaURL("https://example.com/a.png"))

	assert.Equal(t, ".jpg", MediaExtension("https://pbs.twimg.com/media/AbC?format=jpg&name=small"))
	assert.Equal(t, ".png", MediaExtension("https://example.com/x/a.png"))
	assert.Equal(t, ".jpg", MediaExtension("https://example.com/x/noext"))
}
