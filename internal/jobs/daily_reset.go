package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"echoreach/internal/agent"
	"echoreach/internal/config"
	"echoreach/internal/services"
)

const dailyResetLockKey = "echoreach:locks:daily_reset"

// DailyResetJob zeroes the agent's daily action quota and prunes expired
// cooldowns on a cron schedule. When Redis is configured, a distributed
// lock ensures only one instance performs the reset.
type DailyResetJob struct {
	state    *agent.RuntimeState
	policies *config.PolicyStore
	redis    *services.RedisService
	schedule cron.Schedule
}

// NewDailyResetJob parses the cron expression (standard 5-field format)
// and creates the job. redis may be nil for single-instance deployments.
func NewDailyResetJob(state *agent.RuntimeState, policies *config.PolicyStore, redis *services.RedisService, cronExpr string) (*DailyResetJob, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid daily reset schedule %q: %w", cronExpr, err)
	}

	return &DailyResetJob{
		state:    state,
		policies: policies,
		redis:    redis,
		schedule: schedule,
	}, nil
}

// Run performs the daily reset
func (j *DailyResetJob) Run(ctx context.Context) error {
	if j.redis != nil {
		lockValue := uuid.NewString()
		acquired, err := j.redis.AcquireLock(ctx, dailyResetLockKey, lockValue, time.Minute)
		if err != nil {
			log.Printf("⚠️  [DAILY-RESET] Lock check failed, resetting anyway: %v", err)
		} else if !acquired {
			log.Println("[DAILY-RESET] Another instance holds the lock, skipping")
			return nil
		} else {
			defer func() {
				if _, err := j.redis.ReleaseLock(context.Background(), dailyResetLockKey, lockValue); err != nil {
					log.Printf("⚠️  [DAILY-RESET] Failed to release lock: %v", err)
				}
			}()
		}
	}

	policy := j.policies.Current()
	j.state.ResetDaily(policy.Cooldown())
	log.Println("🌅 [DAILY-RESET] Daily action quota and stale cooldowns cleared")
	return nil
}

// GetNextRunTime returns the next scheduled reset
func (j *DailyResetJob) GetNextRunTime() time.Time {
	return j.schedule.Next(time.Now())
}
