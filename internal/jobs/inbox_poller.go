package jobs

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"echoreach/internal/agent"
	"echoreach/internal/config"
	"echoreach/internal/gateway"
	"echoreach/internal/models"
)

// InboxPollerJob periodically searches the monitored queries and feeds new
// posts into the decision engine. Posts already seen are skipped so a post
// that keeps matching a query is decided only once.
type InboxPollerJob struct {
	gw       *gateway.Gateway
	engine   *agent.Engine
	policies *config.PolicyStore
	interval time.Duration
	workers  int
	seen     *gocache.Cache
	log      *logrus.Entry
}

// NewInboxPollerJob creates the poller
func NewInboxPollerJob(gw *gateway.Gateway, engine *agent.Engine, policies *config.PolicyStore, interval time.Duration, workers int) *InboxPollerJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if workers <= 0 {
		workers = 4
	}
	return &InboxPollerJob{
		gw:       gw,
		engine:   engine,
		policies: policies,
		interval: interval,
		workers:  workers,
		seen:     gocache.New(24*time.Hour, time.Hour),
		log:      logrus.WithField("component", "inbox-poller"),
	}
}

// Run polls every monitored query once
func (j *InboxPollerJob) Run(ctx context.Context) error {
	policy := j.policies.Current()
	if len(policy.MonitoredQueries) == 0 {
		j.log.Debug("no monitored queries configured, skipping poll")
		return nil
	}

	for _, query := range policy.MonitoredQueries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		results, err := j.gw.Search(ctx, query, models.SearchFilters{
			MaxResults:      25,
			SortOrder:       "recency",
			ExcludeRetweets: true,
		})
		if err != nil {
			// A rate-limited or failing query must not starve the others.
			j.log.WithError(err).WithField("query", query).Warn("search failed, continuing with next query")
			continue
		}

		fresh := j.filterUnseen(results.Posts)
		if len(fresh) == 0 {
			continue
		}

		j.log.WithFields(logrus.Fields{
			"query":  query,
			"posts":  len(fresh),
			"source": results.Source,
		}).Info("processing polled posts")

		j.engine.ProcessBatch(ctx, fresh, j.workers)
	}
	return nil
}

// filterUnseen drops posts this poller already handed to the engine.
func (j *InboxPollerJob) filterUnseen(posts []models.Post) []models.Post {
	fresh := make([]models.Post, 0, len(posts))
	for _, post := range posts {
		if _, dup := j.seen.Get(post.ID); dup {
			continue
		}
		j.seen.SetDefault(post.ID, struct{}{})
		fresh = append(fresh, post)
	}
	return fresh
}

// GetNextRunTime returns the next poll time
func (j *InboxPollerJob) GetNextRunTime() time.Time {
	return time.Now().Add(j.interval)
}
