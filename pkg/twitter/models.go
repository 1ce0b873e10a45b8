package twitter

import (
	"regexp"
	"strconv"
	"strings"

	"xscraper/pkg/record"
)

// rawProfile is what the page scripts and the replay parser read from a UserCell
type rawProfile struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
	Verified    bool   `json:"verified"`
	FollowsYou  bool   `json:"followsYou"`
	AvatarURL   string `json:"avatarUrl"`
}

// rawPost is what the page scripts and the replay parser read from a tweet article
type rawPost struct {
	ID          string   `json:"id"`
	Author      string   `json:"author"`
	DisplayName string   `json:"displayName"`
	Text        string   `json:"text"`
	CreatedAt   string   `json:"createdAt"`
	URL         string   `json:"url"`
	Replies     string   `json:"replies"`
	Reposts     string   `json:"reposts"`
	Likes       string   `json:"likes"`
	Views       string   `json:"views"`
	Media       []string `json:"media"`
	Links       []string `json:"links"`
	Social      string   `json:"social"`
	Quote       bool     `json:"quote"`
}

var (
	statusIDPattern = regexp.MustCompile(`/status/(\d+)`)
	digitsPattern   = regexp.MustCompile(`^\d+$`)
	hashtagPattern  = regexp.MustCompile(`(?:^|[^\w&])#(\w+)`)
	mentionPattern  = regexp.MustCompile(`(?:^|[^\w])@(\w{1,15})`)
	linkPattern     = regexp.MustCompile(`https?://[^\s"'<>]+`)
	metricPattern   = regexp.MustCompile(`([\d.,]+)\s*([KkMmBb])?`)
)

// StatusID extracts a status id from a bare id or any status url
func StatusID(s string) string {
	s = strings.TrimSpace(s)
	if digitsPattern.MatchString(s) {
		return s
	}
	if m := statusIDPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// ParseMetric converts counts such as "1,234", "12.5K" or "3 Likes. Like" to an integer
func ParseMetric(s string) int64 {
	m := metricPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	num := strings.ReplaceAll(m[1], ",", "")
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	switch strings.ToUpper(m[2]) {
	case "K":
		f *= 1_000
	case "M":
		f *= 1_000_000
	case "B":
		f *= 1_000_000_000
	}
	return int64(f)
}

// Hashtags returns the distinct tags in a post text, without "#", in order of appearance
func Hashtags(text string) []string {
	return uniqueMatches(hashtagPattern, text, 1)
}

// Mentions returns the distinct handles mentioned in a post text, without "@"
func Mentions(text string) []string {
	return uniqueMatches(mentionPattern, text, 1)
}

// Links returns the distinct http(s) urls in a post text
func Links(text string) []string {
	return uniqueMatches(linkPattern, text, 0)
}

func uniqueMatches(re *regexp.Regexp, text string, group int) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		v := strings.TrimRight(m[group], ".,;:!?)")
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func mergeUnique(a, b []string) []string {
	out := append([]string{}, a...)
	seen := map[string]bool{}
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func (p rawProfile) record(baseURL string) record.Record {
	handle := Handle(p.Handle)
	return record.New(handle, map[string]any{
		FieldHandle:      handle,
		FieldDisplayName: strings.TrimSpace(p.DisplayName),
		FieldBio:         strings.TrimSpace(p.Bio),
		FieldVerified:    p.Verified,
		FieldFollowsYou:  p.FollowsYou,
		FieldProfileURL:  ProfileURL(baseURL, handle),
		FieldAvatarURL:   p.AvatarURL,
	})
}

func (p rawPost) record(baseURL string) record.Record {
	author := Handle(p.Author)
	postURL := p.URL
	if postURL == "" || strings.HasPrefix(postURL, "/") {
		postURL = strings.TrimRight(ProfileURL(baseURL, author), "/") + "/status/" + p.ID
	}
	media := p.Media
	if media == nil {
		media = []string{}
	}
	return record.New(p.ID, map[string]any{
		FieldAuthor:      author,
		FieldDisplayName: strings.TrimSpace(p.DisplayName),
		FieldText:        p.Text,
		FieldCreatedAt:   p.CreatedAt,
		FieldURL:         postURL,
		FieldReplies:     ParseMetric(p.Replies),
		FieldReposts:     ParseMetric(p.Reposts),
		FieldLikes:       ParseMetric(p.Likes),
		FieldViews:       ParseMetric(p.Views),
		FieldHashtags:    Hashtags(p.Text),
		FieldMentions:    Mentions(p.Text),
		FieldLinks:       mergeUnique(Links(p.Text), p.Links),
		FieldMedia:       media,
		FieldIsRepost:    strings.Contains(strings.ToLower(p.Social), "repost"),
		FieldIsQuote:     p.Quote,
	})
}

// profileRecords converts raw profiles. Entries without a handle are kept so the collector counts them as skipped.
func profileRecords(raw []rawProfile, baseURL string) []record.Record {
	out := make([]record.Record, 0, len(raw))
	for _, p := range raw {
		out = append(out, p.record(baseURL))
	}
	return out
}

// postRecords converts raw posts. The thread root is excluded on the replies surface.
func postRecords(raw []rawPost, baseURL, excludeID string) []record.Record {
	out := make([]record.Record, 0, len(raw))
	for _, p := range raw {
		if excludeID != "" && p.ID == excludeID {
			continue
		}
		out = append(out, p.record(baseURL))
	}
	return out
}
