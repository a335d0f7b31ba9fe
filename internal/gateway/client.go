package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"echoreach/internal/models"
)

const defaultAPIBase = "https://api.x.com/2"

// Credentials for the X v2 API. Reads use the bearer token; writes are
// signed with OAuth 1.0a and need the full set.
type Credentials struct {
	BearerToken       string
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
	// AccountID is the numeric id of the authenticated account, used for
	// like/retweet endpoints.
	AccountID string
}

// CanWrite reports whether the OAuth 1.0a credential set is complete.
func (c Credentials) CanWrite() bool {
	return c.APIKey != "" && c.APISecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

// Client performs raw HTTP calls against the X v2 API. It classifies every
// non-2xx response into an APIError and hands response headers back to the
// caller so the rate tracker can be updated.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
}

// NewClient creates a client with a bounded request timeout.
func NewClient(creds Credentials, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    defaultAPIBase,
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBaseURL overrides the API base, used by tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimSuffix(base, "/")
}

type searchMeta struct {
	ResultCount int    `json:"result_count"`
	NewestID    string `json:"newest_id,omitempty"`
}

type publicMetrics struct {
	LikeCount    int `json:"like_count"`
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	QuoteCount   int `json:"quote_count"`
}

type tweetData struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	AuthorID      string        `json:"author_id"`
	CreatedAt     time.Time     `json:"created_at"`
	Lang          string        `json:"lang,omitempty"`
	PublicMetrics publicMetrics `json:"public_metrics"`
}

type userData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Verified bool   `json:"verified"`
}

type searchResponse struct {
	Data     []tweetData `json:"data"`
	Includes struct {
		Users []userData `json:"users"`
	} `json:"includes"`
	Meta searchMeta `json:"meta"`
}

// SearchRecent queries /tweets/search/recent with metric and author
// expansions. Returns the mapped result set and the response headers.
func (c *Client) SearchRecent(ctx context.Context, query string, filters models.SearchFilters) (*models.ResultSet, http.Header, error) {
	maxResults := filters.MaxResults
	if maxResults < 10 {
		maxResults = 10
	}
	if maxResults > 100 {
		maxResults = 100
	}

	q := query
	if filters.Language != "" {
		q += " lang:" + filters.Language
	}
	if filters.ExcludeRetweets {
		q += " -is:retweet"
	}

	params := url.Values{}
	params.Set("query", q)
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("tweet.fields", "created_at,public_metrics,author_id,lang")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "name,username,verified")
	if filters.SortOrder != "" {
		params.Set("sort_order", filters.SortOrder)
	}

	body, headers, err := c.bearerRequest(ctx, "GET", "/tweets/search/recent?"+params.Encode(), nil)
	if err != nil {
		return nil, headers, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, headers, fmt.Errorf("failed to parse search response: %w", err)
	}

	users := make(map[string]models.User, len(parsed.Includes.Users))
	for _, u := range parsed.Includes.Users {
		users[u.ID] = models.User{ID: u.ID, Name: u.Name, Username: u.Username, Verified: u.Verified}
	}

	rs := &models.ResultSet{Source: models.SourceLive, Users: users}
	for _, tw := range parsed.Data {
		post := models.Post{
			ID:             tw.ID,
			Text:           tw.Text,
			CounterpartyID: tw.AuthorID,
			CreatedAt:      tw.CreatedAt,
			Language:       tw.Lang,
			Engagement: models.EngagementMetrics{
				Likes:    tw.PublicMetrics.LikeCount,
				Retweets: tw.PublicMetrics.RetweetCount,
				Replies:  tw.PublicMetrics.ReplyCount,
				Quotes:   tw.PublicMetrics.QuoteCount,
			},
		}
		if author, ok := users[tw.AuthorID]; ok {
			post.CounterpartyHandle = author.Username
		}
		rs.Posts = append(rs.Posts, post)
	}

	return rs, headers, nil
}

// UserByUsername resolves a handle to its account data.
func (c *Client) UserByUsername(ctx context.Context, username string) (*models.User, http.Header, error) {
	username = strings.TrimPrefix(username, "@")

	body, headers, err := c.bearerRequest(ctx, "GET", "/users/by/username/"+url.PathEscape(username), nil)
	if err != nil {
		return nil, headers, err
	}

	var parsed struct {
		Data userData `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, headers, fmt.Errorf("failed to parse user response: %w", err)
	}

	return &models.User{
		ID:       parsed.Data.ID,
		Name:     parsed.Data.Name,
		Username: parsed.Data.Username,
		Verified: parsed.Data.Verified,
	}, headers, nil
}

// PostTweet publishes a tweet, optionally as a reply or quote. Requires the
// OAuth 1.0a credential set. Returns the created tweet id.
func (c *Client) PostTweet(ctx context.Context, text, replyToID, quoteID string) (string, http.Header, error) {
	if !c.creds.CanWrite() {
		return "", nil, fmt.Errorf("posting requires OAuth 1.0a credentials (api key/secret, access token/secret)")
	}

	payload := map[string]interface{}{"text": text}
	if replyToID != "" {
		payload["reply"] = map[string]interface{}{"in_reply_to_tweet_id": replyToID}
	}
	if quoteID != "" {
		payload["quote_tweet_id"] = quoteID
	}

	body, headers, err := c.oauthRequest(ctx, "POST", "/tweets", payload)
	if err != nil {
		return "", headers, err
	}

	var parsed struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", headers, fmt.Errorf("failed to parse tweet response: %w", err)
	}
	return parsed.Data.ID, headers, nil
}

// Like marks a tweet as liked by the authenticated account.
func (c *Client) Like(ctx context.Context, tweetID string) (http.Header, error) {
	if !c.creds.CanWrite() {
		return nil, fmt.Errorf("liking requires OAuth 1.0a credentials")
	}
	endpoint := fmt.Sprintf("/users/%s/likes", c.creds.AccountID)
	_, headers, err := c.oauthRequest(ctx, "POST", endpoint, map[string]interface{}{"tweet_id": tweetID})
	return headers, err
}

// Retweet reposts a tweet from the authenticated account.
func (c *Client) Retweet(ctx context.Context, tweetID string) (http.Header, error) {
	if !c.creds.CanWrite() {
		return nil, fmt.Errorf("retweeting requires OAuth 1.0a credentials")
	}
	endpoint := fmt.Sprintf("/users/%s/retweets", c.creds.AccountID)
	_, headers, err := c.oauthRequest(ctx, "POST", endpoint, map[string]interface{}{"tweet_id": tweetID})
	return headers, err
}

func (c *Client) bearerRequest(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, http.Header, error) {
	req, err := c.buildRequest(ctx, method, endpoint, payload)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.BearerToken)
	return c.do(req)
}

func (c *Client) oauthRequest(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, http.Header, error) {
	urlStr := c.baseURL + endpoint

	oauthParams := map[string]string{
		"oauth_consumer_key":     c.creds.APIKey,
		"oauth_nonce":            generateNonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(time.Now().Unix(), 10),
		"oauth_token":            c.creds.AccessToken,
		"oauth_version":          "1.0",
	}
	oauthParams["oauth_signature"] = signOAuth(method, urlStr, oauthParams, c.creds.APISecret, c.creds.AccessTokenSecret)

	var authParts []string
	for k, v := range oauthParams {
		authParts = append(authParts, fmt.Sprintf(`%s="%s"`, k, url.QueryEscape(v)))
	}
	sort.Strings(authParts)

	req, err := c.buildRequest(ctx, method, endpoint, payload)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "OAuth "+strings.Join(authParts, ", "))
	return c.do(req)
}

func (c *Client) buildRequest(ctx context.Context, method, endpoint string, payload interface{}) (*http.Request, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, http.Header, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.Header, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, resp.Header, classifyResponse(resp.StatusCode, apiErrorDetail(body), resp.Header)
	}

	return body, resp.Header, nil
}

// apiErrorDetail pulls the most specific message out of an X error body.
func apiErrorDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return string(body)
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	if len(parsed.Errors) > 0 && parsed.Errors[0].Message != "" {
		return parsed.Errors[0].Message
	}
	if parsed.Title != "" {
		return parsed.Title
	}
	return string(body)
}

// signOAuth produces the HMAC-SHA1 OAuth 1.0a signature over the sorted
// parameter set.
func signOAuth(method, urlStr string, params map[string]string, consumerSecret, tokenSecret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var paramPairs []string
	for _, k := range keys {
		paramPairs = append(paramPairs, fmt.Sprintf("%s=%s", url.QueryEscape(k), url.QueryEscape(params[k])))
	}
	signatureBase := fmt.Sprintf("%s&%s&%s",
		strings.ToUpper(method),
		url.QueryEscape(urlStr),
		url.QueryEscape(strings.Join(paramPairs, "&")),
	)
	signingKey := fmt.Sprintf("%s&%s", url.QueryEscape(consumerSecret), url.QueryEscape(tokenSecret))

	h := hmac.New(sha1.New, []byte(signingKey))
	h.Write([]byte(signatureBase))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func generateNonce() string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 32)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
