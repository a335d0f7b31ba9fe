package models

import "time"

// EngagementMetrics holds the public engagement counters of a post.
type EngagementMetrics struct {
	Likes    int `json:"likes"`
	Retweets int `json:"retweets"`
	Replies  int `json:"replies"`
	Quotes   int `json:"quotes"`
}

// Total returns the summed engagement signal used by the decision rules.
func (m EngagementMetrics) Total() int {
	return m.Likes + m.Retweets + m.Replies + m.Quotes
}

// Post is an inbound item from the social network, as delivered by the
// poller or the dashboard batch endpoint.
type Post struct {
	ID                 string            `json:"id"`
	Text               string            `json:"text"`
	CounterpartyID     string            `json:"counterparty_id"`
	CounterpartyHandle string            `json:"counterparty_handle"`
	CreatedAt          time.Time         `json:"created_at"`
	Engagement         EngagementMetrics `json:"engagement"`
	Language           string            `json:"language,omitempty"`
}

// SearchFilters narrow a gateway search. All fields are optional.
type SearchFilters struct {
	Language        string `json:"language,omitempty"`
	MaxResults      int    `json:"max_results,omitempty"`
	SortOrder       string `json:"sort_order,omitempty"` // recency, relevancy
	ExcludeRetweets bool   `json:"exclude_retweets,omitempty"`
}

// ResultSource tags where a gateway result came from so callers can tell a
// live answer from a degraded one.
type ResultSource string

const (
	SourceLive              ResultSource = "live"
	SourceCachedRateLimited ResultSource = "cached_due_to_rate_limit"
	SourceCachedError       ResultSource = "cached_due_to_error"
)

// ResultSet is the outcome of a gateway search.
type ResultSet struct {
	Posts  []Post          `json:"posts"`
	Users  map[string]User `json:"users,omitempty"` // author_id -> expansion data
	Source ResultSource    `json:"source"`
	// CachedAt and Fresh are set when Source is not live, so callers can
	// tell an authoritative cached answer from a stale fallback.
	CachedAt time.Time `json:"cached_at,omitempty"`
	Fresh    bool      `json:"fresh,omitempty"`
}

// User is the expansion data for a post author.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Verified bool   `json:"verified,omitempty"`
}
