package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"salestats/internal/analytics"
	"salestats/internal/cache"
	"salestats/internal/core"
	"salestats/internal/log"
	"salestats/internal/seed"
)

const (
	snapshotKey        = "all"
	defaultSeedTimeout = 30 * time.Second
)

// Store is the record store the service reads from and reseeds.
type Store interface {
	ReplaceAll(ctx context.Context, txs []core.Transaction) error
	All(ctx context.Context) ([]core.Transaction, error)
	Search(ctx context.Context, q core.ListQuery) ([]core.Transaction, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// SeedSource provides the validated seed document.
type SeedSource interface {
	Load(ctx context.Context) (seed.Result, error)
	URL() string
}

// SeedNotifier is told about every completed reseed.
type SeedNotifier interface {
	SeedCompleted(ctx context.Context, records int, size, source string) error
}

type Options struct {
	Logger      *log.Logger
	Notifier    SeedNotifier
	Caches      *cache.Manager
	CacheSize   int
	CacheTTL    time.Duration
	SeedTimeout time.Duration
}

// Stats reports service counters for /metrics.
type Stats struct {
	Seeds         int64
	SeedFailures  int64
	SnapshotCache cache.Stats
	CombinedCache cache.Stats
}

// ProductService serves the product API on top of a Store.
type ProductService struct {
	store    Store
	source   SeedSource
	notifier SeedNotifier
	logger   *log.Logger

	snapshots *cache.LRUCache[[]core.Transaction]
	combined  *cache.LRUCache[core.Combined]

	// mu orders cache writes against invalidation on reseed.
	mu         sync.Mutex
	generation uint64

	loads       singleflight.Group
	seeds       singleflight.Group
	seedTimeout time.Duration

	seedCount    atomic.Int64
	seedFailures atomic.Int64
}

func NewProductService(store Store, source SeedSource, opts Options) *ProductService {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.CacheSize < 1 {
		opts.CacheSize = 64
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.SeedTimeout <= 0 {
		opts.SeedTimeout = defaultSeedTimeout
	}

	s := &ProductService{
		store:       store,
		source:      source,
		notifier:    opts.Notifier,
		logger:      opts.Logger.WithComponent(log.ComponentProduct),
		snapshots:   cache.NewLRUCache[[]core.Transaction](1, opts.CacheTTL),
		combined:    cache.NewLRUCache[core.Combined](opts.CacheSize, opts.CacheTTL),
		seedTimeout: opts.SeedTimeout,
	}

	if opts.Caches != nil {
		opts.Caches.Register("snapshots", s.snapshots)
		opts.Caches.Register("combined", s.combined)
	}

	return s
}

// Initialize replaces the whole store with the seed document and returns the
// number of stored records. Concurrent calls share one fetch and replace.
// The reseed is detached from the caller's cancellation and bounded by the
// seed timeout instead.
func (s *ProductService) Initialize(ctx context.Context) (int, error) {
	ch := s.seeds.DoChan("initialize", func() (any, error) {
		seedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.seedTimeout)
		defer cancel()
		return s.reseed(seedCtx)
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	}
}

func (s *ProductService) reseed(ctx context.Context) (int, error) {
	res, err := s.source.Load(ctx)
	if err != nil {
		s.seedFailures.Add(1)
		return 0, fmt.Errorf("load seed: %w", err)
	}

	if err := s.store.ReplaceAll(ctx, res.Transactions); err != nil {
		s.seedFailures.Add(1)
		return 0, fmt.Errorf("replace transactions: %w", err)
	}

	s.invalidate()
	s.seedCount.Add(1)

	n := len(res.Transactions)
	log.NewStructuredLogger(s.logger).LogSeedCompleted(ctx, n, res.Size())

	if s.notifier != nil {
		if err := s.notifier.SeedCompleted(ctx, n, res.Size(), s.source.URL()); err != nil {
			// The store is already replaced; a lost event does not undo it.
			s.logger.WarnContext(ctx, "Failed to publish seed event", log.FieldError, err)
		}
	}

	return n, nil
}

func (s *ProductService) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.snapshots.Purge()
	s.combined.Purge()
}

func (s *ProductService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// storeIfCurrent runs set only if no reseed happened since gen was read.
func (s *ProductService) storeIfCurrent(gen uint64, set func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen {
		set()
	}
}

// loadAll returns the whole collection, shared between concurrent callers
// and cached until the next reseed. The shared read is detached from any one
// caller, so a disconnecting client only abandons its own wait.
func (s *ProductService) loadAll(ctx context.Context) ([]core.Transaction, error) {
	if txs, ok := s.snapshots.Get(snapshotKey); ok {
		return txs, nil
	}

	gen := s.currentGeneration()
	loadCtx := context.WithoutCancel(ctx)
	ch := s.loads.DoChan(fmt.Sprintf("%s:%d", snapshotKey, gen), func() (any, error) {
		if txs, ok := s.snapshots.Get(snapshotKey); ok {
			return txs, nil
		}
		txs, err := s.store.All(loadCtx)
		if err != nil {
			return nil, err
		}
		s.storeIfCurrent(gen, func() { s.snapshots.Set(snapshotKey, txs) })
		return txs, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load transactions: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("load transactions: %w", res.Err)
		}
		return res.Val.([]core.Transaction), nil
	}
}

// Transactions returns one page of the filtered listing.
func (s *ProductService) Transactions(ctx context.Context, q core.ListQuery) ([]core.Transaction, error) {
	txs, err := s.store.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *ProductService) Statistics(ctx context.Context, month string) (core.Statistics, error) {
	txs, err := s.loadAll(ctx)
	if err != nil {
		return core.Statistics{}, err
	}
	return analytics.Statistics(txs, month), nil
}

func (s *ProductService) BarChart(ctx context.Context, month string) (core.BarChart, error) {
	txs, err := s.loadAll(ctx)
	if err != nil {
		return core.BarChart{}, err
	}
	return analytics.BarChart(txs, month)
}

func (s *ProductService) PieChart(ctx context.Context, month string) ([]core.CategoryCount, error) {
	txs, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.PieChart(txs, month)
}

// Combined computes the three views concurrently. Any failing view fails the
// whole result, including a month without records.
func (s *ProductService) Combined(ctx context.Context, month string) (core.Combined, error) {
	if c, ok := s.combined.Get(month); ok {
		return c, nil
	}

	gen := s.currentGeneration()

	var out core.Combined
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.Statistics(gctx, month)
		if err != nil {
			return fmt.Errorf("statistics: %w", err)
		}
		out.Statistics = stats
		return nil
	})
	g.Go(func() error {
		bar, err := s.BarChart(gctx, month)
		if err != nil {
			return fmt.Errorf("bar chart: %w", err)
		}
		out.BarChart = bar
		return nil
	})
	g.Go(func() error {
		pie, err := s.PieChart(gctx, month)
		if err != nil {
			return fmt.Errorf("pie chart: %w", err)
		}
		out.PieChart = pie
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Combined{}, err
	}

	s.storeIfCurrent(gen, func() { s.combined.Set(month, out) })
	return out, nil
}

// Ready pings the store and reports how many records it holds.
func (s *ProductService) Ready(ctx context.Context) (int, error) {
	if err := s.store.Ping(ctx); err != nil {
		return 0, fmt.Errorf("ping store: %w", err)
	}
	return s.store.Count(ctx)
}

func (s *ProductService) Stats() Stats {
	return Stats{
		Seeds:         s.seedCount.Load(),
		SeedFailures:  s.seedFailures.Load(),
		SnapshotCache: s.snapshots.Stats(),
		CombinedCache: s.combined.Stats(),
	}
}

// IsNotFound reports whether err means the requested month has no records.
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrNoTransactions)
}
