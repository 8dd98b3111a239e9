//go:build load

// Package load drives the chat route under concurrent traffic. The tests
// are excluded from regular CI runs.
// Run with: go test -tags load -count=1 -timeout 60s ./tests/load/
package load

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	cfhttp "github.com/Strob0t/chatrelay/internal/adapter/http"
	"github.com/Strob0t/chatrelay/internal/adapter/memstore"
	"github.com/Strob0t/chatrelay/internal/adapter/ristretto"
	"github.com/Strob0t/chatrelay/internal/domain/turn"
	"github.com/Strob0t/chatrelay/internal/middleware"
	"github.com/Strob0t/chatrelay/internal/port/generator"
	"github.com/Strob0t/chatrelay/internal/service"
)

type countingGenerator struct {
	calls atomic.Int64
}

func (g *countingGenerator) Generate(_ context.Context, req generator.Request) (string, error) {
	g.calls.Add(1)
	return req.Prompt + turn.DefaultDelimiter + " ok", nil
}

// countingStore counts the writes that reach the object store.
type countingStore struct {
	*memstore.Store
	putObjects atomic.Int64
	putTags    atomic.Int64
}

func (s *countingStore) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	s.putObjects.Add(1)
	return s.Store.PutObject(ctx, key, body, contentType)
}

func (s *countingStore) PutTags(ctx context.Context, key string, tags turn.Tags) error {
	s.putTags.Add(1)
	return s.Store.PutTags(ctx, key, tags)
}

type relay struct {
	handler http.Handler
	limiter *middleware.RateLimiter
	gen     *countingGenerator
	store   *countingStore
}

func newRelay(t *testing.T, rate float64, burst int) *relay {
	t.Helper()

	c, err := ristretto.New(32 << 20)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)

	gen := &countingGenerator{}
	store := &countingStore{Store: memstore.New()}
	history := service.NewHistoryStore(c, time.Hour)
	limiter := middleware.NewRateLimiter(rate, burst)

	r := chi.NewRouter()
	cfhttp.MountRoutes(r, &cfhttp.Handlers{
		Chat:         service.NewChatService(gen, store, history, nil, nil, turn.DefaultDelimiter),
		Feedback:     service.NewFeedbackService(store, history, nil, nil),
		History:      history,
		Review:       service.NewReviewService(store),
		MaxBodyBytes: 1 << 20,
		CookieMaxAge: time.Hour,
	}, cfhttp.RouteOptions{
		Conversation: middleware.Conversation(time.Hour, false),
		RateLimit:    limiter.Handler,
	})

	return &relay{handler: r, limiter: limiter, gen: gen, store: store}
}

type tally struct {
	ok, limited, other atomic.Int64
}

func (rl *relay) send(ip, msg string, out *tally) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"`+msg+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = ip + ":40000"
	rec := httptest.NewRecorder()
	rl.handler.ServeHTTP(rec, req)

	switch rec.Code {
	case http.StatusOK:
		out.ok.Add(1)
	case http.StatusTooManyRequests:
		out.limited.Add(1)
	default:
		out.other.Add(1)
	}
}

// assertOneWritePerTurn checks that every admitted turn was generated and
// logged exactly once and that rejected requests left no trace.
func (rl *relay) assertOneWritePerTurn(t *testing.T, ok int64) {
	t.Helper()
	if got := rl.gen.calls.Load(); got != ok {
		t.Errorf("expected %d generation calls, got %d", ok, got)
	}
	if got := rl.store.putObjects.Load(); got != ok {
		t.Errorf("expected %d record writes, got %d", ok, got)
	}
	if got := rl.store.putTags.Load(); got != ok {
		t.Errorf("expected %d tag writes, got %d", ok, got)
	}
	if got := len(rl.store.Keys(turn.KeyPrefix)); int64(got) != ok {
		t.Errorf("expected %d log records, got %d", ok, got)
	}
}

// TestChatBurstFromOneClient fires 10 goroutines x 50 messages from one
// address at a limiter with 10 tokens and a negligible refill. Only admitted turns may
// reach the generation service or the object store.
func TestChatBurstFromOneClient(t *testing.T) {
	const burst = 10
	rl := newRelay(t, 0.001, burst)

	const goroutines = 10
	const perGoroutine = 50

	var res tally
	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perGoroutine {
				rl.send("10.0.0.1", fmt.Sprintf("g%d-m%d", g, i), &res)
			}
		}()
	}
	wg.Wait()

	ok, limited := res.ok.Load(), res.limited.Load()
	if other := res.other.Load(); other != 0 {
		t.Fatalf("unexpected non-200/429 responses: %d", other)
	}
	if ok+limited != goroutines*perGoroutine {
		t.Fatalf("expected %d responses, got %d", goroutines*perGoroutine, ok+limited)
	}
	if ok != burst {
		t.Errorf("expected %d admitted turns, got %d", burst, ok)
	}
	t.Logf("admitted=%d limited=%d", ok, limited)

	rl.assertOneWritePerTurn(t, ok)
}

// TestChatClientsLimitedIndependently gives each of 100 addresses a burst
// of 2 with a negligible refill rate. Every address gets exactly its burst.
func TestChatClientsLimitedIndependently(t *testing.T) {
	const clients = 100
	const burst = 2
	const perClient = 5
	rl := newRelay(t, 0.001, burst)

	var res tally
	var wg sync.WaitGroup
	for c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ip := fmt.Sprintf("10.1.%d.%d", c/256, c%256)
			for i := range perClient {
				rl.send(ip, fmt.Sprintf("c%d-m%d", c, i), &res)
			}
		}()
	}
	wg.Wait()

	if got := res.ok.Load(); got != clients*burst {
		t.Errorf("expected %d admitted turns, got %d", clients*burst, got)
	}
	if got := res.limited.Load(); got != clients*(perClient-burst) {
		t.Errorf("expected %d limited requests, got %d", clients*(perClient-burst), got)
	}
	if rl.limiter.Len() != clients {
		t.Errorf("expected %d buckets, got %d", clients, rl.limiter.Len())
	}

	rl.assertOneWritePerTurn(t, res.ok.Load())
}

// TestChatLimiterCleanupAfterTraffic drops idle buckets once traffic stops
// while the logged turns stay in the store.
func TestChatLimiterCleanupAfterTraffic(t *testing.T) {
	const clients = 200
	rl := newRelay(t, 10, 10)

	var res tally
	for c := range clients {
		rl.send(fmt.Sprintf("10.2.%d.%d", c/256, c%256), "hello", &res)
	}
	if rl.limiter.Len() != clients {
		t.Fatalf("expected %d buckets, got %d", clients, rl.limiter.Len())
	}

	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rl.limiter.RunCleanup(ctx, 5*time.Millisecond, time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for rl.limiter.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := rl.limiter.Len(); n != 0 {
		t.Errorf("expected no buckets after cleanup, got %d", n)
	}
	if got := len(rl.store.Keys(turn.KeyPrefix)); got != clients {
		t.Errorf("cleanup must not affect logged turns, got %d records", got)
	}
}
