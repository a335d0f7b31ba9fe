package config

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Policy holds the decision rules the agent applies to inbound items. It
// lives in a YAML file so operators can tune thresholds without a redeploy.
type Policy struct {
	DetectionThreshold          float64  `yaml:"detection_threshold" json:"detection_threshold"`
	HighEngagementThreshold     int      `yaml:"high_engagement_threshold" json:"high_engagement_threshold"`
	ModerateEngagementThreshold int      `yaml:"moderate_engagement_threshold" json:"moderate_engagement_threshold"`
	PriorityKeywords            []string `yaml:"priority_keywords" json:"priority_keywords"`
	BlockedTerms                []string `yaml:"blocked_terms" json:"blocked_terms"`
	MaxResponseLength           int      `yaml:"max_response_length" json:"max_response_length"`
	MaxDailyActions             int      `yaml:"max_daily_actions" json:"max_daily_actions"`
	CooldownMinutes             int      `yaml:"cooldown_minutes" json:"cooldown_minutes"`
	MonitoredQueries            []string `yaml:"monitored_queries" json:"monitored_queries"`
}

// Cooldown returns the minimum spacing between actions toward the same
// counterparty.
func (p Policy) Cooldown() time.Duration {
	return time.Duration(p.CooldownMinutes) * time.Minute
}

// DefaultPolicy returns conservative defaults used when no policy file
// exists yet.
func DefaultPolicy() Policy {
	return Policy{
		DetectionThreshold:          0.7,
		HighEngagementThreshold:     100,
		ModerateEngagementThreshold: 20,
		MaxResponseLength:           280,
		MaxDailyActions:             50,
		CooldownMinutes:             60,
	}
}

// PolicyStore serves the current policy and hot-reloads it when the YAML
// file changes on disk.
type PolicyStore struct {
	mu      sync.RWMutex
	policy  Policy
	path    string
	watcher *fsnotify.Watcher
}

// LoadPolicy reads the policy file and starts watching it for changes.
// A missing file is not an error: defaults apply until one appears.
func LoadPolicy(path string) (*PolicyStore, error) {
	s := &PolicyStore{policy: DefaultPolicy(), path: path}

	if err := s.reload(); err != nil {
		if os.IsNotExist(err) {
			log.Printf("⚠️  [POLICY] No policy file at %s, using defaults", path)
		} else {
			return nil, err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  [POLICY] File watching unavailable: %v", err)
		return s, nil
	}
	if err := watcher.Add(path); err != nil {
		// Watch the file once it exists; until then reloads are manual.
		watcher.Close()
		return s, nil
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := s.reload(); err != nil {
						log.Printf("❌ [POLICY] Reload failed, keeping previous policy: %v", err)
					} else {
						log.Printf("✅ [POLICY] Reloaded policy from %s", path)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("⚠️  [POLICY] Watcher error: %v", err)
			}
		}
	}()

	return s, nil
}

// Current returns the active policy.
func (s *PolicyStore) Current() Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Update replaces the active policy in memory (used by tests and the admin
// surface; the file on disk is authoritative across restarts).
func (s *PolicyStore) Update(p Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
}

// Close stops the file watcher.
func (s *PolicyStore) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *PolicyStore) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to parse policy YAML: %w", err)
	}
	if p.DetectionThreshold <= 0 || p.DetectionThreshold > 1 {
		return fmt.Errorf("detection_threshold %v out of range (0,1]", p.DetectionThreshold)
	}

	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
	return nil
}
