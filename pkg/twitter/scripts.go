package twitter

import (
	"encoding/json"
	"fmt"
	"strings"
)

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// profilesScript reads every rendered UserCell
var profilesScript = fmt.Sprintf(`(() => {
  const out = [];
  document.querySelectorAll(%s).forEach((cell) => {
    const link = cell.querySelector(%s);
    const href = link ? link.getAttribute('href') || '' : '';
    const handle = href.split('/').filter(Boolean)[0] || '';
    const name = link ? (link.querySelector('span') || link).textContent : '';
    const bio = cell.querySelector(%s);
    const avatar = cell.querySelector(%s);
    out.push({
      handle: handle,
      displayName: (name || '').trim(),
      bio: bio ? bio.textContent.trim() : '',
      verified: !!cell.querySelector(%s),
      followsYou: !!cell.querySelector(%s),
      avatarUrl: avatar ? avatar.src : ''
    });
  });
  return out;
})()`, jsString(SelUserCell), jsString(SelUserLink), jsString(SelUserBio), jsString(SelAvatar),
	jsString(SelVerified), jsString(SelFollowsYou))

// postsScript reads every rendered tweet article
var postsScript = fmt.Sprintf(`(() => {
  const out = [];
  const label = (el) => el ? (el.getAttribute('aria-label') || el.textContent || '') : '';
  document.querySelectorAll(%s).forEach((article) => {
    const time = article.querySelector('time');
    const anchor = time ? time.closest('a') : article.querySelector('a[href*="/status/"]');
    const href = anchor ? anchor.getAttribute('href') || '' : '';
    const m = href.match(/\/status\/(\d+)/);
    const user = article.querySelector(%s);
    const userLink = user ? user.querySelector('a[href^="/"]') : null;
    const text = article.querySelector(%s);
    const media = [];
    article.querySelectorAll(%s).forEach((img) => media.push(img.src));
    article.querySelectorAll(%s).forEach((v) => { if (v.poster) media.push(v.poster); });
    const links = [];
    if (text) text.querySelectorAll('a[href^="http"]').forEach((a) => links.push(a.href));
    out.push({
      id: m ? m[1] : '',
      author: userLink ? (userLink.getAttribute('href') || '').split('/').filter(Boolean)[0] || '' : '',
      displayName: userLink ? userLink.textContent.trim() : '',
      text: text ? text.innerText : '',
      createdAt: time ? time.getAttribute('datetime') || '' : '',
      url: anchor ? anchor.href : '',
      replies: label(article.querySelector(%s)),
      reposts: label(article.querySelector(%s)),
      likes: label(article.querySelector(%s) || article.querySelector(%s)),
      views: label(article.querySelector(%s)),
      media: media,
      links: links,
      social: label(article.querySelector(%s)),
      quote: !!article.querySelector(%s)
    });
  });
  return out;
})()`, jsString(SelTweet), jsString(SelUserName), jsString(SelTweetText), jsString(SelTweetPhoto),
	jsString(SelVideo), jsString(SelReplyButton), jsString(SelRepostButton), jsString(SelLikeButton),
	jsString(SelUnlikeButton), jsString(SelViews), jsString(SelSocialCtx), jsString(SelQuote))

// stateScript classifies the loaded page as ok, not_found or login
var stateScript = fmt.Sprintf(`(() => {
  if (location.pathname.startsWith('/i/flow/login') || document.querySelector(%s) || document.querySelector(%s)) {
    return 'login';
  }
  const phrases = %s;
  const boxes = [document.querySelector(%s), document.querySelector(%s)];
  for (const box of boxes) {
    if (!box) continue;
    const text = box.textContent.toLowerCase();
    if (phrases.some((p) => text.includes(p))) return 'not_found';
  }
  return 'ok';
})()`, jsString(SelLoginForm), jsString(SelLoginButton), jsArray(notFoundPhrases),
	jsString(SelEmptyState), jsString(SelErrorDetail))

// scrollScript moves the viewport to the bottom so the next batch loads
const scrollScript = `window.scrollTo(0, document.body.scrollHeight); document.body.scrollHeight`

// relationshipScript reports the state of the first follow button on a profile page
var relationshipScript = fmt.Sprintf(`(() => {
  const col = document.querySelector(%s) || document;
  const button = col.querySelector(%s);
  if (!button) return '';
  return (button.getAttribute('data-testid') || '').endsWith('-unfollow') ? 'following' : 'not_following';
})()`, jsString(SelPrimaryColumn), jsString(SelUnfollowButton+", "+SelFollowButton))

func jsArray(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = jsString(strings.ToLower(v))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
