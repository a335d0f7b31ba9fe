package gateway

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"echoreach/internal/cache"
	"echoreach/internal/models"
	"echoreach/internal/ratelimit"
	"echoreach/internal/services"
)

// Endpoint identifiers for rate tracking. These follow the X API quota
// buckets, not URL paths.
const (
	EndpointSearch   = "search"
	EndpointTweets   = "tweets"
	EndpointLikes    = "likes"
	EndpointRetweets = "retweets"
	EndpointUsers    = "users"
)

const profileCacheTTL = 10 * time.Minute

// Gateway is the sole path for outbound calls to the X API. It composes the
// rate tracker and result cache: reads degrade to cached data when the API
// is limited or failing, writes fail plainly.
type Gateway struct {
	client  *Client
	tracker *ratelimit.Tracker
	cache   *cache.ResultCache
	pacer   *rate.Limiter
	// profiles caches counterparty lookups so the poller doesn't burn the
	// users quota re-resolving handles.
	profiles *gocache.Cache
	metrics  *services.Metrics
}

// New creates a gateway. pacerRate is the self-imposed outbound ceiling in
// requests per second, independent of server-reported windows.
func New(client *Client, tracker *ratelimit.Tracker, resultCache *cache.ResultCache, pacerRate float64, metrics *services.Metrics) *Gateway {
	if pacerRate <= 0 {
		pacerRate = 1.0
	}
	return &Gateway{
		client:   client,
		tracker:  tracker,
		cache:    resultCache,
		pacer:    rate.NewLimiter(rate.Limit(pacerRate), int(pacerRate*2)+1),
		profiles: gocache.New(profileCacheTTL, 5*time.Minute),
		metrics:  metrics,
	}
}

// Tracker exposes the rate tracker for status snapshots and admin resets.
func (g *Gateway) Tracker() *ratelimit.Tracker { return g.tracker }

// Cache exposes the result cache for admin resets.
func (g *Gateway) Cache() *cache.ResultCache { return g.cache }

// Search runs a recent-posts search, serving cached results when the
// endpoint is rate limited or the live call fails.
func (g *Gateway) Search(ctx context.Context, query string, filters models.SearchFilters) (*models.ResultSet, error) {
	sig := cache.Signature(query, filters)
	entry, found := g.cache.Get(sig)

	if g.tracker.IsLimited(EndpointSearch) {
		if found {
			return g.servedFromCache(entry, models.SourceCachedRateLimited), nil
		}
		return nil, g.rateLimitedError(EndpointSearch)
	}

	if err := g.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	result, headers, err := g.client.SearchRecent(ctx, query, filters)
	if err == nil {
		g.tracker.RecordFromResponse(EndpointSearch, headers)
		g.cache.Put(sig, *result)
		g.recordCall(EndpointSearch, string(models.SourceLive))
		return result, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		g.recordError(apiErr)
		switch apiErr.Kind {
		case KindRateLimited:
			g.tracker.RecordHardLimitError(EndpointSearch, apiErr.RetryAfter)
			if found {
				return g.servedFromCache(entry, models.SourceCachedRateLimited), nil
			}
			return nil, g.rateLimitedError(EndpointSearch)
		case KindUnauthorized, KindForbidden:
			// Credential failures are surfaced immediately, never papered
			// over with cached data.
			return nil, apiErr
		default:
			if found {
				log.Printf("⚠️  [GATEWAY] Live search failed (%s), serving cached results from %s",
					apiErr.Kind, entry.CachedAt.Format(time.RFC3339))
				return g.servedFromCache(entry, models.SourceCachedError), nil
			}
			return nil, apiErr
		}
	}

	// Transport-level failure (timeout, connection reset).
	if found {
		log.Printf("⚠️  [GATEWAY] Live search failed (%v), serving cached results", err)
		return g.servedFromCache(entry, models.SourceCachedError), nil
	}
	return nil, err
}

// Reply posts a reply to a tweet. Returns the created tweet id.
func (g *Gateway) Reply(ctx context.Context, text, inReplyToID string) (string, error) {
	return g.write(ctx, EndpointTweets, func() (string, http.Header, error) {
		return g.client.PostTweet(ctx, text, inReplyToID, "")
	})
}

// Quote posts a quote tweet. Returns the created tweet id.
func (g *Gateway) Quote(ctx context.Context, text, quoteID string) (string, error) {
	return g.write(ctx, EndpointTweets, func() (string, http.Header, error) {
		return g.client.PostTweet(ctx, text, "", quoteID)
	})
}

// Retweet reposts a tweet from the configured account.
func (g *Gateway) Retweet(ctx context.Context, tweetID string) error {
	_, err := g.write(ctx, EndpointRetweets, func() (string, http.Header, error) {
		headers, err := g.client.Retweet(ctx, tweetID)
		return tweetID, headers, err
	})
	return err
}

// Like marks a tweet as liked by the configured account.
func (g *Gateway) Like(ctx context.Context, tweetID string) error {
	_, err := g.write(ctx, EndpointLikes, func() (string, http.Header, error) {
		headers, err := g.client.Like(ctx, tweetID)
		return tweetID, headers, err
	})
	return err
}

// LookupUser resolves a handle, serving recent lookups from the profile
// cache before touching the users quota.
func (g *Gateway) LookupUser(ctx context.Context, handle string) (*models.User, error) {
	if cached, ok := g.profiles.Get(handle); ok {
		if user, ok := cached.(*models.User); ok {
			return user, nil
		}
	}

	if g.tracker.IsLimited(EndpointUsers) {
		return nil, g.rateLimitedError(EndpointUsers)
	}
	if err := g.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	user, headers, err := g.client.UserByUsername(ctx, handle)
	if headers != nil {
		g.tracker.RecordFromResponse(EndpointUsers, headers)
	}
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			g.recordError(apiErr)
			if apiErr.Kind == KindRateLimited {
				g.tracker.RecordHardLimitError(EndpointUsers, apiErr.RetryAfter)
				return nil, g.rateLimitedError(EndpointUsers)
			}
		}
		return nil, err
	}

	g.profiles.Set(handle, user, gocache.DefaultExpiration)
	g.recordCall(EndpointUsers, string(models.SourceLive))
	return user, nil
}

// write runs one write operation through the tracker. Writes have no cache
// fallback: a failed write is reported as failed.
func (g *Gateway) write(ctx context.Context, endpoint string, call func() (string, http.Header, error)) (string, error) {
	if g.tracker.IsLimited(endpoint) {
		return "", g.rateLimitedError(endpoint)
	}
	if err := g.pacer.Wait(ctx); err != nil {
		return "", err
	}

	id, headers, err := call()
	if headers != nil {
		g.tracker.RecordFromResponse(endpoint, headers)
	}
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			g.recordError(apiErr)
			if apiErr.Kind == KindRateLimited {
				g.tracker.RecordHardLimitError(endpoint, apiErr.RetryAfter)
				return "", g.rateLimitedError(endpoint)
			}
		}
		return "", err
	}

	g.recordCall(endpoint, string(models.SourceLive))
	return id, nil
}

func (g *Gateway) servedFromCache(entry *cache.Entry, source models.ResultSource) *models.ResultSet {
	rs := entry.Payload
	rs.Source = source
	rs.CachedAt = entry.CachedAt
	rs.Fresh = g.cache.IsFresh(entry)
	g.recordCall(EndpointSearch, string(source))
	return &rs
}

func (g *Gateway) rateLimitedError(endpoint string) *APIError {
	if g.metrics != nil {
		g.metrics.RecordRateLimitStall()
	}
	return &APIError{
		Kind:       KindRateLimited,
		StatusCode: http.StatusTooManyRequests,
		Message:    "endpoint " + endpoint + " is over quota",
		RetryDelay: g.tracker.RetryDelay(endpoint),
	}
}

func (g *Gateway) recordCall(endpoint, source string) {
	if g.metrics != nil {
		g.metrics.RecordGatewayCall(endpoint, source)
	}
}

func (g *Gateway) recordError(apiErr *APIError) {
	if g.metrics != nil {
		g.metrics.RecordGatewayError(string(apiErr.Kind))
	}
}
