package ephemeris

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultGridMinutes is the bucket width point queries are snapped to.
const DefaultGridMinutes = 5

// DefaultCacheSize bounds the number of (target, bucket) entries the
// cache retains; a full night at 5-minute resolution for a few hundred
// targets comfortably fits well under this.
const DefaultCacheSize = 200_000

// CacheMiss is returned by Get when no sample exists within the
// configured tolerance of the requested instant — the caller must
// populate the cache first (Populate/ParallelPopulate) or relax
// Tolerance. It signals a programming error: it must never be silently
// swallowed inside the scheduler loop.
type CacheMiss struct {
	Target string
	At     time.Time
}

func (e *CacheMiss) Error() string {
	return fmt.Sprintf("ephemeris cache miss for target %q at %s: no sample within tolerance", e.Target, e.At)
}

type cacheKey struct {
	target string
	bucket int64 // unix seconds, floor-rounded to the grid
}

// ComputeFunc computes a CalculationResult for a target at a given
// instant; Cache calls it at most once per (target, bucket) pair.
type ComputeFunc func(t time.Time) CalculationResult

// Cache is a bounded, concurrency-safe store of CalculationResults bucketed
// to a time grid, keyed by target identity. Readers observe only entries
// that a writer has already published (single-writer-per-bucket via
// populateOnce); concurrent reads during bulk population are always safe because a
// bucket's entry is written exactly once under its sync.Once.
type Cache struct {
	GridMinutes int
	Tolerance   time.Duration

	store *lru.Cache[cacheKey, CalculationResult]

	mu          sync.Mutex
	populateOnce map[cacheKey]*sync.Once
}

// NewCache constructs a Cache with the given entry capacity. gridMinutes
// and tolerance fall back to DefaultGridMinutes / gridMinutes if zero.
func NewCache(capacity int, gridMinutes int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	if gridMinutes <= 0 {
		gridMinutes = DefaultGridMinutes
	}
	store, err := lru.New[cacheKey, CalculationResult](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{
		GridMinutes:  gridMinutes,
		Tolerance:    time.Duration(gridMinutes) * time.Minute,
		store:        store,
		populateOnce: make(map[cacheKey]*sync.Once),
	}, nil
}

func (c *Cache) bucketFor(target string, t time.Time) cacheKey {
	grid := int64(c.GridMinutes * 60)
	sec := t.Unix()
	bucket := (sec / grid) * grid
	return cacheKey{target: target, bucket: bucket}
}

// Get returns the cached sample nearest t for target, if one exists
// within c.Tolerance; otherwise it returns a *CacheMiss.
func (c *Cache) Get(target string, t time.Time) (CalculationResult, error) {
	key := c.bucketFor(target, t)
	// the adjacent bucket may be closer than the floor bucket when t
	// falls in the back half of its grid cell.
	altKey := cacheKey{target: target, bucket: key.bucket + int64(c.GridMinutes*60)}
	var best CalculationResult
	found := false
	for _, k := range []cacheKey{key, altKey} {
		v, ok := c.store.Get(k)
		if !ok || absDuration(v.Time.Sub(t)) > c.Tolerance {
			continue
		}
		if !found || absDuration(v.Time.Sub(t)) < absDuration(best.Time.Sub(t)) {
			best, found = v, true
		}
	}
	if found {
		return best, nil
	}
	return CalculationResult{}, &CacheMiss{Target: target, At: t}
}

// Populate computes and stores a sample for target at every instant in
// times, bucketed to the grid, using compute. Each (target, bucket) pair
// is computed at most once even if called concurrently for the same
// target from multiple goroutines (single-writer-per-target).
func (c *Cache) Populate(target string, times []time.Time, compute ComputeFunc) {
	for _, t := range times {
		key := c.bucketFor(target, t)
		once := c.onceFor(key)
		once.Do(func() {
			bucketTime := time.Unix(key.bucket, 0).UTC()
			c.store.Add(key, compute(bucketTime))
		})
	}
}

func (c *Cache) onceFor(key cacheKey) *sync.Once {
	c.mu.Lock()
	defer c.mu.Unlock()
	once, ok := c.populateOnce[key]
	if !ok {
		once = &sync.Once{}
		c.populateOnce[key] = once
	}
	return once
}

// TargetWork pairs a target identity with the instants to populate for it
// and the function that computes a sample, for use with ParallelPopulate.
type TargetWork struct {
	Target  string
	Times   []time.Time
	Compute ComputeFunc
}

// ParallelPopulate fans Populate out across a worker pool bounded by
// GOMAXPROCS, one goroutine per target at a time; calculations for
// distinct targets are independent. It blocks until every target in work
// has been populated.
func (c *Cache) ParallelPopulate(work []TargetWork) {
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > len(work) {
		workers = len(work)
	}
	if workers == 0 {
		return
	}

	jobs := make(chan TargetWork)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range jobs {
				c.Populate(w.Target, w.Times, w.Compute)
			}
		}()
	}
	for _, w := range work {
		jobs <- w
	}
	close(jobs)
	wg.Wait()
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
