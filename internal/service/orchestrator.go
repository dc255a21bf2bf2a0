package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"headline_aggregator/internal/config"
	"headline_aggregator/internal/domain"
	"headline_aggregator/internal/provider"
)

// Provider pairs a client with its quota and retry policy. Caps, cooldowns
// and country lists differ per provider and come from configuration.
type Provider struct {
	Client   ProviderClient
	Cap      int
	Cooldown time.Duration
	Retry    config.RetryConfig
}

// Orchestrator drives the fetch cycle: for every (provider, country) pair it
// decides whether to call the provider at all (quota gate, cooldown, cache
// guard), retries transient failures with bounded backoff, and persists
// results idempotently.
type Orchestrator struct {
	providers []Provider
	articles  ArticleStore
	quota     QuotaTracker
	publisher Publisher // optional
	logger    *slog.Logger

	cacheWindow    time.Duration
	failureBackoff time.Duration

	cycleMu sync.Mutex

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	pendingMu sync.Mutex
	pending   map[string]struct{}
	wg        sync.WaitGroup
}

func NewOrchestrator(
	providers []Provider,
	articles ArticleStore,
	quota QuotaTracker,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.FetchConfig,
) *Orchestrator {
	return &Orchestrator{
		providers:      providers,
		articles:       articles,
		quota:          quota,
		publisher:      publisher,
		logger:         logger,
		cacheWindow:    cfg.CacheWindow,
		failureBackoff: cfg.FailureBackoff,
		now:            time.Now,
		sleep:          sleepContext,
		pending:        make(map[string]struct{}),
	}
}

// RunCycle performs one pass over all providers and their countries. Safe to
// call repeatedly; a trigger that arrives while a cycle is still in flight is
// skipped, never run concurrently. Providers run in parallel: they touch
// disjoint quota rows and write articles tagged with distinct sources.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	if !o.cycleMu.TryLock() {
		o.logger.Warn("previous cycle still in flight, trigger skipped")
		return nil
	}
	defer o.cycleMu.Unlock()

	start := o.now()
	o.logger.Info("cycle started", "providers", len(o.providers))

	var g errgroup.Group
	for _, p := range o.providers {
		g.Go(func() error {
			if err := o.runProvider(ctx, p); err != nil {
				o.logger.Error("provider cycle aborted",
					"provider", p.Client.Name(),
					"error", err,
				)
				return err
			}
			return nil
		})
	}
	err := g.Wait()

	o.logger.Info("cycle completed", "duration", o.now().Sub(start))
	return err
}

// Close waits for outstanding failed-country re-attempts to observe
// cancellation. Call after the orchestrator's context is done.
func (o *Orchestrator) Close() {
	o.wg.Wait()
}

func (o *Orchestrator) runProvider(ctx context.Context, p Provider) error {
	name := p.Client.Name()
	log := o.logger.With("provider", name)
	start := o.now()
	stats := domain.ProviderStats{Provider: name}

	state, err := o.quota.Today(ctx, name)
	if err != nil {
		return fmt.Errorf("quota state: %w", err)
	}
	if state.CoolingDown(o.now(), p.Cooldown) {
		log.Info("cooldown active, provider skipped",
			"last_rate_limit_hit", state.LastRateLimitHit,
			"cooldown", p.Cooldown,
		)
		return nil
	}
	if state.Exhausted(p.Cap) {
		if err := o.quota.RecordRateLimited(ctx, name); err != nil {
			return fmt.Errorf("arm cooldown: %w", err)
		}
		log.Info("request cap reached, provider skipped",
			"count", state.RequestCount,
			"cap", p.Cap,
		)
		return nil
	}

	for _, country := range p.Client.Countries() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if o.inBackoff(name, country) {
			continue
		}

		fresh, err := o.articles.HasFresh(ctx, country, o.cacheWindow)
		if err != nil {
			return fmt.Errorf("freshness check for %s: %w", country, err)
		}
		if fresh {
			stats.CacheHits++
			log.Debug("fresh articles cached, country skipped", "country", country)
			continue
		}

		articles, res := o.fetchWithRetry(ctx, p, country)
		if err := ctx.Err(); err != nil {
			return err
		}

		switch res.kind {
		case fetchSuccess:
			inserted, duplicates := o.storeArticles(ctx, log, country, articles)
			stats.Inserted += inserted
			stats.Duplicates += duplicates

			count, err := o.quota.RecordSuccess(ctx, name)
			if err != nil {
				return fmt.Errorf("record quota success: %w", err)
			}
			stats.Requests++

			if p.Cap > 0 && count >= p.Cap {
				if err := o.quota.RecordRateLimited(ctx, name); err != nil {
					return fmt.Errorf("arm cooldown: %w", err)
				}
				log.Info("request cap crossed mid-cycle, remaining countries skipped",
					"count", count,
					"cap", p.Cap,
					"last_country", country,
				)
				o.logProviderDone(log, stats, start)
				return nil
			}

		case fetchRateLimited:
			stats.RateLimited = true
			if err := o.quota.RecordRateLimited(ctx, name); err != nil {
				return fmt.Errorf("arm cooldown: %w", err)
			}
			log.Warn("rate limited, remaining countries skipped this cycle",
				"country", country,
				"attempts", res.attempts,
			)
			o.logProviderDone(log, stats, start)
			return nil

		case fetchPermanent:
			log.Error("unrecoverable provider response, country skipped",
				"country", country,
				"error", res.err,
			)

		case fetchFailed:
			stats.FailedCountry++
			log.Error("country failed after retries",
				"country", country,
				"attempts", res.attempts,
				"error", res.err,
			)
			o.scheduleRetry(ctx, p, country)
		}
	}

	o.logProviderDone(log, stats, start)
	return nil
}

func (o *Orchestrator) logProviderDone(log *slog.Logger, stats domain.ProviderStats, start time.Time) {
	log.Info("provider cycle completed",
		"requests", stats.Requests,
		"inserted", stats.Inserted,
		"duplicates", stats.Duplicates,
		"cache_hits", stats.CacheHits,
		"failed_countries", stats.FailedCountry,
		"rate_limited", stats.RateLimited,
		"duration", o.now().Sub(start),
	)
}

// storeArticles persists one country's batch. Per-article failures are
// contained: a broken row must not cost the rest of the batch.
func (o *Orchestrator) storeArticles(ctx context.Context, log *slog.Logger, country string, articles []domain.Article) (inserted, duplicates int) {
	for i := range articles {
		article := &articles[i]
		created, err := o.articles.Upsert(ctx, article)
		if err != nil {
			log.Error("article upsert failed",
				"country", country,
				"url", article.URL,
				"error", err,
			)
			continue
		}
		if !created {
			duplicates++
			continue
		}
		inserted++

		if o.publisher != nil {
			if err := o.publisher.Publish(ctx, article); err != nil {
				log.Error("article publish failed",
					"url", article.URL,
					"error", err,
				)
			}
		}
	}
	return inserted, duplicates
}

type fetchKind int

const (
	fetchSuccess fetchKind = iota
	fetchRateLimited
	fetchPermanent
	fetchFailed
)

type fetchResult struct {
	kind     fetchKind
	attempts int
	err      error
}

// fetchWithRetry runs the bounded attempt loop for one country and returns a
// tagged outcome so callers can branch on the failure kind. 429 responses
// honor the server's Retry-After hint (scaled by attempt index, uncapped);
// transient failures back off exponentially up to the configured maximum.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, p Provider, country string) ([]domain.Article, fetchResult) {
	backoff := p.Retry.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= p.Retry.MaxAttempts; attempt++ {
		articles, err := p.Client.FetchHeadlines(ctx, country)
		if err == nil {
			return articles, fetchResult{kind: fetchSuccess, attempts: attempt}
		}
		lastErr = err

		if rle, ok := provider.AsRateLimit(err); ok {
			if attempt == p.Retry.MaxAttempts {
				return nil, fetchResult{kind: fetchRateLimited, attempts: attempt, err: err}
			}
			wait := backoff
			if rle.RetryAfter > 0 {
				wait = rle.RetryAfter * time.Duration(attempt)
			}
			if err := o.sleep(ctx, wait); err != nil {
				return nil, fetchResult{kind: fetchFailed, attempts: attempt, err: err}
			}
			backoff = nextBackoff(backoff, p.Retry.MaxBackoff)
			continue
		}

		if provider.IsPermanent(err) {
			return nil, fetchResult{kind: fetchPermanent, attempts: attempt, err: err}
		}

		if attempt == p.Retry.MaxAttempts {
			break
		}
		if err := o.sleep(ctx, backoff); err != nil {
			return nil, fetchResult{kind: fetchFailed, attempts: attempt, err: err}
		}
		backoff = nextBackoff(backoff, p.Retry.MaxBackoff)
	}

	return nil, fetchResult{kind: fetchFailed, attempts: p.Retry.MaxAttempts, err: lastErr}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if max > 0 && next > max {
		next = max
	}
	return next
}

// scheduleRetry queues a failed country for an isolated re-attempt after the
// failure backoff window. The country is excluded from normal cycles until
// the re-attempt succeeds.
func (o *Orchestrator) scheduleRetry(ctx context.Context, p Provider, country string) {
	key := taskKey(p.Client.Name(), country)

	o.pendingMu.Lock()
	if _, queued := o.pending[key]; queued {
		o.pendingMu.Unlock()
		return
	}
	o.pending[key] = struct{}{}
	o.pendingMu.Unlock()

	o.wg.Add(1)
	go o.retryLater(ctx, p, country, key)
}

func (o *Orchestrator) retryLater(ctx context.Context, p Provider, country, key string) {
	defer o.wg.Done()
	defer o.clearPending(key)

	log := o.logger.With("provider", p.Client.Name(), "country", country)
	timer := time.NewTimer(o.failureBackoff)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		ok, err := o.retryCountry(ctx, p, country)
		if err != nil {
			log.Error("isolated re-attempt aborted", "error", err)
			return
		}
		if ok {
			log.Info("isolated re-attempt succeeded, country rejoins normal cycles")
			return
		}
		log.Warn("isolated re-attempt failed, backing off again", "backoff", o.failureBackoff)
		timer.Reset(o.failureBackoff)
	}
}

// retryCountry runs the same quota gate and retry policy as the main loop,
// but for a single country. Returns whether the country recovered.
func (o *Orchestrator) retryCountry(ctx context.Context, p Provider, country string) (bool, error) {
	name := p.Client.Name()

	state, err := o.quota.Today(ctx, name)
	if err != nil {
		return false, fmt.Errorf("quota state: %w", err)
	}
	if state.CoolingDown(o.now(), p.Cooldown) || state.Exhausted(p.Cap) {
		return false, nil
	}

	articles, res := o.fetchWithRetry(ctx, p, country)
	switch res.kind {
	case fetchSuccess:
		o.storeArticles(ctx, o.logger.With("provider", name), country, articles)
		if _, err := o.quota.RecordSuccess(ctx, name); err != nil {
			return false, fmt.Errorf("record quota success: %w", err)
		}
		return true, nil
	case fetchRateLimited:
		if err := o.quota.RecordRateLimited(ctx, name); err != nil {
			return false, fmt.Errorf("arm cooldown: %w", err)
		}
		return false, nil
	case fetchPermanent:
		return false, res.err
	default:
		if err := ctx.Err(); err != nil {
			return false, err
		}
		return false, nil
	}
}

func (o *Orchestrator) inBackoff(providerName, country string) bool {
	o.pendingMu.Lock()
	defer o.pendingMu.Unlock()
	_, queued := o.pending[taskKey(providerName, country)]
	return queued
}

func (o *Orchestrator) clearPending(key string) {
	o.pendingMu.Lock()
	delete(o.pending, key)
	o.pendingMu.Unlock()
}

func taskKey(providerName, country string) string {
	return providerName + "/" + country
}

// sleepContext waits for d or until ctx is done, whichever comes first. No
// store or quota lock is held while waiting.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
