package twitter

import (
	"fmt"
	"net/url"
	"strings"
)

// Surface names a scrollable list on x.com
type Surface string

const (
	SurfaceFollowers         Surface = "followers"
	SurfaceFollowing         Surface = "following"
	SurfaceVerifiedFollowers Surface = "verified_followers"
	SurfacePosts             Surface = "posts"
	SurfaceLikes             Surface = "likes"
	SurfaceReplies           Surface = "replies"
	SurfaceHashtag           Surface = "hashtag"
	SurfaceSearch            Surface = "search"
)

// Kind is the record shape a surface yields
type Kind int

const (
	KindProfile Kind = iota
	KindPost
)

// Surfaces lists every supported surface in display order
var Surfaces = []Surface{
	SurfaceFollowers,
	SurfaceFollowing,
	SurfaceVerifiedFollowers,
	SurfacePosts,
	SurfaceLikes,
	SurfaceReplies,
	SurfaceHashtag,
	SurfaceSearch,
}

// Record field names
const (
	FieldHandle      = "handle"
	FieldDisplayName = "display_name"
	FieldBio         = "bio"
	FieldVerified    = "verified"
	FieldFollowsYou  = "follows_you"
	FieldProfileURL  = "profile_url"
	FieldAvatarURL   = "avatar_url"

	FieldAuthor    = "author"
	FieldText      = "text"
	FieldCreatedAt = "created_at"
	FieldURL       = "url"
	FieldReplies   = "replies"
	FieldReposts   = "reposts"
	FieldLikes     = "likes"
	FieldViews     = "views"
	FieldHashtags  = "hashtags"
	FieldMentions  = "mentions"
	FieldLinks     = "links"
	FieldMedia     = "media"
	FieldIsRepost  = "is_repost"
	FieldIsQuote   = "is_quote"
)

var (
	profileColumns = []string{"id", FieldDisplayName, FieldBio, FieldVerified, FieldFollowsYou, FieldProfileURL, "captured_at"}
	postColumns    = []string{"id", FieldAuthor, FieldCreatedAt, FieldText, FieldLikes, FieldReposts, FieldReplies, FieldViews,
		FieldHashtags, FieldMentions, FieldLinks, FieldMedia, FieldURL, "captured_at"}
)

// ParseSurface accepts a surface name, case-insensitively; "" means followers
func ParseSurface(s string) (Surface, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SurfaceFollowers, nil
	}
	for _, surface := range Surfaces {
		if string(surface) == s {
			return surface, nil
		}
	}
	return "", fmt.Errorf("unknown surface %q", s)
}

// Kind reports whether the surface lists profiles or posts
func (s Surface) Kind() Kind {
	switch s {
	case SurfaceFollowers, SurfaceFollowing, SurfaceVerifiedFollowers:
		return KindProfile
	default:
		return KindPost
	}
}

// DefaultColumns returns the CSV projection used for the surface
func (s Surface) DefaultColumns() []string {
	if s.Kind() == KindProfile {
		return append([]string(nil), profileColumns...)
	}
	return append([]string(nil), postColumns...)
}

// URL builds the page address of the surface for a subject. The subject is a
// handle for profile-based surfaces, a status id for replies, a tag for
// hashtag and free text for search.
func (s Surface) URL(baseURL, subject string) (string, error) {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "https://x.com"
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("empty subject for surface %s", s)
	}

	switch s {
	case SurfaceFollowers, SurfaceFollowing, SurfaceVerifiedFollowers:
		return fmt.Sprintf("%s/%s/%s", base, url.PathEscape(Handle(subject)), s), nil
	case SurfacePosts:
		return fmt.Sprintf("%s/%s", base, url.PathEscape(Handle(subject))), nil
	case SurfaceLikes:
		return fmt.Sprintf("%s/%s/likes", base, url.PathEscape(Handle(subject))), nil
	case SurfaceReplies:
		id := StatusID(subject)
		if id == "" {
			return "", fmt.Errorf("replies surface needs a status id or url, got %q", subject)
		}
		return fmt.Sprintf("%s/i/status/%s", base, id), nil
	case SurfaceHashtag:
		tag := strings.TrimPrefix(subject, "#")
		return fmt.Sprintf("%s/hashtag/%s?f=live", base, url.PathEscape(tag)), nil
	case SurfaceSearch:
		return fmt.Sprintf("%s/search?q=%s&src=typed_query&f=live", base, url.QueryEscape(subject)), nil
	default:
		return "", fmt.Errorf("unknown surface %q", s)
	}
}

// ProfileURL returns the profile page of a handle
func ProfileURL(baseURL, handle string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "https://x.com"
	}
	return base + "/" + Handle(handle)
}

// Handle strips whitespace and a leading "@" while keeping the original case
func Handle(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}
