package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/edgeauth/internal"
	"github.com/MrEthical07/edgeauth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
)

// slowRepository adds a fixed delay to every durable lookup, standing in for a
// database round trip.
type slowRepository struct {
	session.Repository
	delay time.Duration
}

func (r slowRepository) FindLive(ctx context.Context, id string, now time.Time) (*session.Session, error) {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.Repository.FindLive(ctx, id, now)
}

type eventCounts [session.EventCoalesced + 1]atomic.Uint64

func (c *eventCounts) RecordSession(ev session.Event) {
	if int(ev) < len(c) {
		c[ev].Add(1)
	}
}

func (c *eventCounts) reset() {
	for i := range c {
		c[i].Store(0)
	}
}

func main() {
	var (
		sessions    = flag.Int("sessions", 10000, "number of sessions to seed")
		hot         = flag.Int("hot", 100, "size of the hot set resolved in the cold phase")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		dbDelay     = flag.Duration("db-delay", 2*time.Millisecond, "simulated durable lookup latency")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 || *hot <= 0 || *hot > *sessions {
		fmt.Fprintln(os.Stderr, "sessions, hot, concurrency, and ops must be > 0 and hot <= sessions")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	mem := session.NewMemoryRepository()
	counts := &eventCounts{}
	store, err := session.NewStore(
		session.NewRedisCache(client),
		slowRepository{Repository: mem, delay: *dbDelay},
		session.Config{},
		session.WithRecorder(counts),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "store: %v\n", err)
		os.Exit(1)
	}

	ids := make([]string, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	now := time.Now()
	for i := range ids {
		sid, err := internal.NewSessionID()
		if err != nil {
			fmt.Fprintf(os.Stderr, "session id: %v\n", err)
			os.Exit(1)
		}
		ids[i] = sid.String()
		if err := mem.Create(ctx, &session.Session{
			ID:        ids[i],
			UserID:    fmt.Sprintf("u%d", i),
			UserEmail: fmt.Sprintf("user%d@example.com", i),
			UserType:  "creator",
			CreatedAt: now,
			ExpiresAt: now.Add(24 * time.Hour),
		}); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	// Cold: empty cache, many workers hitting a small hot set at once.
	if err := client.FlushDB(ctx).Err(); err != nil {
		fmt.Fprintf(os.Stderr, "flush: %v\n", err)
		os.Exit(1)
	}
	cold := runPhase(ctx, store, ids[:*hot], *ops, *concurrency)
	coldEvents := snapshot(counts)
	counts.reset()

	// Warm: every session primed, uniform access.
	warm := runPhase(ctx, store, ids, *ops, *concurrency)
	warmEvents := snapshot(counts)

	fmt.Println("---- results ----")
	printStats("cold", cold, coldEvents)
	printStats("warm", warm, warmEvents)
}

func runPhase(ctx context.Context, store *session.Store, ids []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				id := ids[r.Intn(len(ids))]
				t0 := time.Now()
				s, err := store.Resolve(ctx, id)
				d := time.Since(t0)
				if err != nil || s == nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseEvents struct {
	hits, misses, durable, coalesced, errors uint64
}

func snapshot(c *eventCounts) phaseEvents {
	return phaseEvents{
		hits:      c[session.EventCacheHit].Load(),
		misses:    c[session.EventCacheMiss].Load(),
		durable:   c[session.EventDurableLookup].Load(),
		coalesced: c[session.EventCoalesced].Load(),
		errors:    c[session.EventDurableError].Load() + c[session.EventCacheError].Load(),
	}
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats, ev phaseEvents) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
	fmt.Printf("%s: cache_hits=%d cache_misses=%d durable_lookups=%d coalesced=%d errors=%d\n",
		name, ev.hits, ev.misses, ev.durable, ev.coalesced, ev.errors)
}
