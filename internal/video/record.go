package video

import "regexp"

var reContentID = regexp.MustCompile(`^\d{10,25}$`)

// ValidContentID reports whether s is a 10-25 digit content identifier.
func ValidContentID(s string) bool {
	return reContentID.MatchString(s)
}

// ResolvedLink is the normalizer output. IsShortLink records whether the
// input was on a short-link host, regardless of expansion success.
type ResolvedLink struct {
	RawInput      string `json:"rawInput"`
	NormalizedURL string `json:"normalizedUrl"`
	IsShortLink   bool   `json:"isShortLink"`
	Expanded      bool   `json:"expanded"`
}

type Statistics struct {
	LikeCount    int64 `json:"likeCount"`
	CommentCount int64 `json:"commentCount"`
	ShareCount   int64 `json:"shareCount"`
	PlayCount    int64 `json:"playCount"`
	CollectCount int64 `json:"collectCount"`
	ForwardCount int64 `json:"forwardCount"`
}

type Music struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	URL    string `json:"url"`
}

// Record is the canonical, platform-agnostic view of a resolved video.
// An empty MediaURL is a valid outcome; ContentID is always set on success.
type Record struct {
	ContentID   string     `json:"videoId"`
	Title       string     `json:"title,omitempty"`
	Author      string     `json:"author"`
	AuthorID    string     `json:"authorId"`
	PublishTime string     `json:"publishTime"`
	Description string     `json:"description"`
	MediaURL    string     `json:"videoUrl"`
	CoverURL    string     `json:"coverUrl"`
	Duration    int64      `json:"duration"`
	Width       int64      `json:"width"`
	Height      int64      `json:"height"`
	Statistics  Statistics `json:"statistics"`
	Music       Music      `json:"music"`
	Tags        []string   `json:"tags"`
	Source      string     `json:"source,omitempty"`
}

// Result is what callers of the pipeline receive. Exactly one of Record or
// the failure fields is meaningful, according to Success.
type Result struct {
	*Record
	Success          bool      `json:"success"`
	Error            string    `json:"error,omitempty"`
	ErrorKind        ErrorKind `json:"errorKind,omitempty"`
	AttemptedSources []string  `json:"attemptedSources,omitempty"`
	VideoID          string    `json:"videoId,omitempty"`
	Attempts         int       `json:"attempts,omitempty"`
	TraceID          string    `json:"traceId,omitempty"`
}
