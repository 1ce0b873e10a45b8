package twitter

// DOM selectors shared by the live browser scripts and the offline replay parser
const (
	SelPrimaryColumn = `[data-testid="primaryColumn"]`
	SelCell          = `[data-testid="cellInnerDiv"]`
	SelUserCell      = `[data-testid="UserCell"]`
	SelUserLink      = `a[role="link"][href^="/"]`
	SelUserBio       = `[data-testid="UserDescription"]`
	SelVerified      = `[data-testid="icon-verified"]`
	SelFollowsYou    = `[data-testid="userFollowIndicator"]`
	SelAvatar        = `img[src*="profile_images"]`

	SelTweet        = `article[data-testid="tweet"]`
	SelTweetText    = `[data-testid="tweetText"]`
	SelUserName     = `[data-testid="User-Name"]`
	SelSocialCtx    = `[data-testid="socialContext"]`
	SelReplyButton  = `[data-testid="reply"]`
	SelRepostButton = `[data-testid="retweet"]`
	SelLikeButton   = `[data-testid="like"]`
	SelUnlikeButton = `[data-testid="unlike"]`
	SelViews        = `a[href$="/analytics"]`
	SelTweetPhoto   = `[data-testid="tweetPhoto"] img`
	SelVideo        = `video`
	SelQuote        = `[data-testid="quoteTweet"]`

	SelFollowButton   = `[data-testid$="-follow"]`
	SelUnfollowButton = `[data-testid$="-unfollow"]`
	SelConfirmSheet   = `[data-testid="confirmationSheetConfirm"]`

	SelEmptyState  = `[data-testid="emptyState"]`
	SelErrorDetail = `[data-testid="error-detail"]`
	SelLoginButton = `[data-testid="loginButton"]`
	SelLoginForm   = `input[autocomplete="username"]`
)

// Phrases X shows for accounts or posts that cannot be viewed
var notFoundPhrases = []string{
	"doesn’t exist",
	"doesn't exist",
	"account suspended",
	"these posts are protected",
	"this post was deleted",
	"this post is unavailable",
}

// PageState classifies a loaded page
type PageState string

const (
	PageOK       PageState = "ok"
	PageNotFound PageState = "not_found"
	PageLogin    PageState = "login"
)
