package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"spendlog/internal/cache"
	"spendlog/internal/core"
	"spendlog/internal/stats"
	"spendlog/internal/store"
)

// Snapshot is everything the aggregator needs for one user. Its slices are
// shared between readers and must not be modified.
type Snapshot struct {
	Profile    core.UserProfile
	Categories []core.Category
	Expenses   []core.Expense
}

type StatsQuery struct {
	Period     core.Period
	Date       string
	CategoryID string
	Page       int
	PageSize   int
}

// StatsService loads per-user snapshots, caches them and runs the aggregator.
type StatsService struct {
	store     store.Store
	agg       *stats.Aggregator
	snapshots cache.Cache[Snapshot]
	loads     singleflight.Group

	// mu orders cache fills against invalidation. generation changes on every
	// invalidation so a load that started before a write is never cached.
	mu         sync.Mutex
	generation uint64

	// afterLoad runs between a finished load and its cache fill.
	afterLoad func(userID string)
}

// snapshotLoadTimeout bounds a shared load, which outlives the request that started it.
const snapshotLoadTimeout = 10 * time.Second

// NewStatsService builds the service; a nil cache disables caching.
func NewStatsService(st store.Store, agg *stats.Aggregator, snapshots cache.Cache[Snapshot]) *StatsService {
	return &StatsService{store: st, agg: agg, snapshots: snapshots}
}

func (s *StatsService) Stats(ctx context.Context, userID string, q StatsQuery) (stats.Result, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return stats.Result{}, err
	}
	return s.agg.Aggregate(stats.Input{
		Expenses:   snap.Expenses,
		Categories: snap.Categories,
		Timezone:   snap.Profile.Timezone,
		Period:     q.Period,
		Date:       q.Date,
		CategoryID: q.CategoryID,
		Page:       q.Page,
		PageSize:   q.PageSize,
	}), nil
}

func (s *StatsService) Summary(ctx context.Context, userID string) (stats.Totals, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return stats.Totals{}, err
	}
	return s.agg.Totals(snap.Expenses, snap.Profile.Timezone), nil
}

// Snapshot returns the user's profile, categories and expenses, from cache when fresh.
// Concurrent callers share one load; each stops waiting when its own ctx ends.
func (s *StatsService) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	if s.snapshots != nil {
		if snap, ok := s.snapshots.Get(userID); ok {
			return snap, nil
		}
	}

	ch := s.loads.DoChan(userID, func() (any, error) {
		return s.loadAndCache(context.WithoutCancel(ctx), userID)
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Snapshot{}, r.Err
		}
		return r.Val.(Snapshot), nil
	}
}

func (s *StatsService) loadAndCache(ctx context.Context, userID string) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, snapshotLoadTimeout)
	defer cancel()

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	snap, err := s.load(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if s.afterLoad != nil {
		s.afterLoad(userID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshots != nil && s.generation == gen {
		s.snapshots.Set(userID, snap)
	}
	return snap, nil
}

func (s *StatsService) load(ctx context.Context, userID string) (Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		snap.Profile = p
		return nil
	})
	g.Go(func() error {
		cats, err := s.store.ListCategories(ctx, userID)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		snap.Categories = cats
		return nil
	})
	g.Go(func() error {
		exps, err := s.store.ListExpenses(ctx, userID, store.ExpenseFilter{})
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		snap.Expenses = exps
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *StatsService) Invalidate(userID string) {
	s.mu.Lock()
	s.generation++
	if s.snapshots != nil {
		s.snapshots.Delete(userID)
	}
	s.mu.Unlock()
	s.loads.Forget(userID)
}

func (s *StatsService) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if s.snapshots != nil {
		s.snapshots.Purge()
	}
}
