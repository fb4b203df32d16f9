package marginalia

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lecternlabs/marginalia/internal/match/noopmatch"
	"github.com/lecternlabs/marginalia/internal/tier"
	"github.com/lecternlabs/marginalia/internal/tier/memtier"
)

// fakeClock is a mutable time source for TTL and window tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testRequest() Request {
	return Request{
		UserID: "u-1",
		BookID: "gatsby",
		Query:  "Who is the narrator?",
	}
}

func waitForLen(t *testing.T, shared *memtier.Store, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if shared.Len() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("remote tier has %d entries, want %d", shared.Len(), want)
}

func TestCache_SetGet_RoundTrip(t *testing.T) {
	cache, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	ans := Answer{Content: "The story is narrated by Nick Carraway.", TokensUsed: 31, CostUSD: 0.0004}
	if err := cache.Set(ctx, testRequest(), ans, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	res, err := cache.Get(ctx, testRequest())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !res.Hit {
		t.Fatal("Get() missed after Set()")
	}
	if res.Tier != TierL1 {
		t.Errorf("Tier = %q, want %q", res.Tier, TierL1)
	}
	if res.Answer != ans {
		t.Errorf("Answer = %+v, want %+v", res.Answer, ans)
	}

	st := cache.Stats()
	if st.Total.L1Hits != 1 || st.Total.Misses != 0 {
		t.Errorf("stats = %+v, want one l1 hit", st.Total)
	}
}

func TestCache_Get_Miss(t *testing.T) {
	cache, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	res, err := cache.Get(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Hit {
		t.Error("Get() hit on empty cache")
	}
	if res.Tier != "" {
		t.Errorf("Tier = %q, want empty", res.Tier)
	}
	if got := cache.Stats().Total.Misses; got != 1 {
		t.Errorf("Misses = %d, want 1", got)
	}
}

func TestCache_InvalidRequests(t *testing.T) {
	cache, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{
			name:    "empty query",
			req:     Request{UserID: "u-1", BookID: "b", Query: "   "},
			wantErr: ErrEmptyQuery,
		},
		{
			name:    "missing book",
			req:     Request{UserID: "u-1", Query: "who"},
			wantErr: ErrNoBook,
		},
		{
			name:    "private without user",
			req:     Request{BookID: "b", Query: "who"},
			wantErr: ErrNoUser,
		},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := cache.Get(ctx, tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Get() error = %v, want %v", err, tt.wantErr)
			}
			if err := cache.Set(ctx, tt.req, Answer{Content: "a"}, 0); !errors.Is(err, tt.wantErr) {
				t.Errorf("Set() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCache_UserIsolation(t *testing.T) {
	cache, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	reqA := Request{UserID: "u-a", BookID: "diary", Query: "what does the first entry mean"}
	reqB := Request{UserID: "u-b", BookID: "diary", Query: "what does the first entry mean"}

	if err := cache.Set(ctx, reqA, Answer{Content: "a's answer"}, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	res, err := cache.Get(ctx, reqB)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Hit {
		t.Error("user b read user a's cached answer")
	}

	res, err = cache.Get(ctx, reqA)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !res.Hit || res.Answer.Content != "a's answer" {
		t.Errorf("owner lookup = %+v, want a's answer", res)
	}
}

func TestCache_PublicBookShared(t *testing.T) {
	cache, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	setReq := Request{UserID: "u-a", BookID: "gatsby", Public: true, Query: "when was it published"}
	getReq := Request{UserID: "u-b", BookID: "gatsby", Public: true, Query: "when was it published"}

	if err := cache.Set(ctx, setReq, Answer{Content: "1925."}, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	res, err := cache.Get(ctx, getReq)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !res.Hit || res.Answer.Content != "1925." {
		t.Errorf("public lookup = %+v, want shared answer", res)
	}
}

func TestCache_IntentIsolation(t *testing.T) {
	cache, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	chat := Request{UserID: "u-1", BookID: "b", Intent: IntentChat, Query: "what does this passage mean"}
	translate := chat
	translate.Intent = IntentTranslate

	if err := cache.Set(ctx, chat, Answer{Content: "chat answer"}, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	res, err := cache.Get(ctx, translate)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Hit {
		t.Errorf("translate request served %q answer from intent %q", res.Answer.Content, chat.Intent)
	}
}

func TestCache_RemoteTier_SurvivesRestart(t *testing.T) {
	shared := memtier.New(0)
	defer shared.Close()

	first, err := New(WithRemote(shared))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	ans := Answer{Content: "Gatsby throws the parties.", TokensUsed: 18}
	if err := first.Set(ctx, testRequest(), ans, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	// Close drains the asynchronous remote write.
	first.Close()

	second, err := New(WithRemote(shared))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer second.Close()

	res, err := second.Get(ctx, testRequest())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !res.Hit || res.Tier != TierL2 {
		t.Fatalf("Get() = %+v, want remote hit", res)
	}
	if res.Answer != ans {
		t.Errorf("Answer = %+v, want %+v", res.Answer, ans)
	}

	// The remote hit was promoted; the next read is local.
	res, err = second.Get(ctx, testRequest())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Tier != TierL1 {
		t.Errorf("second Get() tier = %q, want %q after promotion", res.Tier, TierL1)
	}

	st := second.Stats()
	if st.Total.L2Hits != 1 || st.Total.L1Hits != 1 {
		t.Errorf("stats = %+v, want one l2 and one l1 hit", st.Total)
	}
}

// failingRemote simulates a remote tier that is down.
type failingRemote struct{}

var _ tier.Remote = (*failingRemote)(nil)

func (f *failingRemote) Get(ctx context.Context, key string) (*tier.Entry, error) {
	return nil, fmt.Errorf("dial tcp: connection refused")
}

func (f *failingRemote) Set(ctx context.Context, key string, e *tier.Entry, ttl time.Duration) error {
	return fmt.Errorf("dial tcp: connection refused")
}

func (f *failingRemote) Delete(ctx context.Context, key string) error {
	return fmt.Errorf("dial tcp: connection refused")
}

func (f *failingRemote) DeleteBook(ctx context.Context, bookPrefix string) (int, error) {
	return 0, fmt.Errorf("dial tcp: connection refused")
}

func (f *failingRemote) Close() error { return nil }

func TestCache_RemoteDown_DegradesToMiss(t *testing.T) {
	cache, err := New(WithRemote(&failingRemote{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	res, err := cache.Get(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Get() error = %v, want degraded miss", err)
	}
	if res.Hit {
		t.Error("Get() hit with remote down and empty l1")
	}
	if got := cache.Stats().Total.Misses; got != 1 {
		t.Errorf("Misses = %d, want 1", got)
	}
}

func TestCache_CorruptRemoteEntry_SelfHeals(t *testing.T) {
	shared := memtier.New(0)
	defer shared.Close()

	cache, err := New(WithRemote(shared))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	key, err := cache.keys.Generate(keyInput(testRequest()))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// Plant an undecodable payload under the exact key.
	corrupt := &tier.Entry{
		Key:     key.Storage(),
		Scope:   key.Scope.String(),
		Payload: []byte("{not an answer"),
	}
	if err := shared.Set(ctx, key.Storage(), corrupt, time.Hour); err != nil {
		t.Fatalf("seeding corrupt entry: %v", err)
	}

	res, err := cache.Get(ctx, testRequest())
	if err != nil {
		t.Fatalf("Get() error = %v, want self-healing miss", err)
	}
	if res.Hit {
		t.Fatal("Get() served a corrupt entry")
	}
	if shared.Len() != 0 {
		t.Errorf("corrupt entry still present, remote len = %d", shared.Len())
	}
}

func TestCache_ScopeViolation(t *testing.T) {
	shared := memtier.New(0)
	defer shared.Close()

	cache, err := New(WithRemote(shared))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	key, err := cache.keys.Generate(keyInput(testRequest()))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	foreign := &tier.Entry{
		Key:     key.Storage(),
		Scope:   "b:gatsby:o:someone-else",
		Payload: []byte(`{"content":"stolen"}`),
	}
	if err := shared.Set(ctx, key.Storage(), foreign, time.Hour); err != nil {
		t.Fatalf("seeding foreign entry: %v", err)
	}

	if _, err := cache.Get(ctx, testRequest()); !errors.Is(err, ErrScopeViolation) {
		t.Errorf("Get() error = %v, want ErrScopeViolation", err)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	cache, err := New(
		WithClock(clock.Now),
		WithDefaultTTL(time.Minute),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Set(ctx, testRequest(), Answer{Content: "fresh"}, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.Advance(30 * time.Second)
	res, err := cache.Get(ctx, testRequest())
	if err != nil || !res.Hit {
		t.Fatalf("Get() before expiry = %+v, %v; want hit", res, err)
	}

	clock.Advance(40 * time.Second)
	res, err = cache.Get(ctx, testRequest())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Hit {
		t.Error("Get() served an expired answer")
	}
	if got := cache.Stats().Total.Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1 for the expired purge", got)
	}
}

func TestCache_L1Capacity(t *testing.T) {
	cache, err := New(
		WithL1MaxEntries(3),
		WithMatcher(noopmatch.New()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		req := Request{UserID: "u-1", BookID: "b", Query: fmt.Sprintf("question number %d", i)}
		if err := cache.Set(ctx, req, Answer{Content: fmt.Sprintf("answer %d", i)}, 0); err != nil {
			t.Fatalf("Set(%d) error = %v", i, err)
		}
	}

	if got := cache.l1.Len(); got != 3 {
		t.Errorf("l1 holds %d entries, want 3", got)
	}
	if got := cache.Stats().Total.Evictions; got != 2 {
		t.Errorf("Evictions = %d, want 2", got)
	}

	// Oldest entries were evicted in order.
	res, _ := cache.Get(ctx, Request{UserID: "u-1", BookID: "b", Query: "question number 1"})
	if res.Hit {
		t.Error("oldest entry survived past capacity")
	}
	res, _ = cache.Get(ctx, Request{UserID: "u-1", BookID: "b", Query: "question number 5"})
	if !res.Hit {
		t.Error("newest entry missing")
	}
}

func TestCache_OversizedAnswer_SkipsL1(t *testing.T) {
	shared := memtier.New(0)
	defer shared.Close()

	newCache := func() *Cache {
		c, err := New(
			WithRemote(shared),
			WithL1MaxBytes(64),
			WithMatcher(noopmatch.New()),
		)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		return c
	}

	first := newCache()
	ctx := context.Background()
	big := Answer{Content: strings.Repeat("a very long answer ", 32)}
	if err := first.Set(ctx, testRequest(), big, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	first.Close()

	second := newCache()
	defer second.Close()
	for i := 0; i < 2; i++ {
		res, err := second.Get(ctx, testRequest())
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !res.Hit || res.Tier != TierL2 {
			t.Fatalf("Get() #%d = %+v, want remote hit without promotion", i+1, res)
		}
	}
}

func TestCache_GetOrGenerate_Coalesces(t *testing.T) {
	var calls atomic.Int64
	entered := make(chan struct{})
	release := make(chan struct{})

	gen := GeneratorFunc(func(ctx context.Context, req Request) (Answer, error) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		return Answer{Content: "generated once"}, nil
	})

	cache, err := New(WithGenerator(gen))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	const callers = 6
	results := make([]Result, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.GetOrGenerate(ctx, testRequest())
		}(i)
	}

	// Let every caller reach the gate before the leader finishes.
	<-entered
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("generator ran %d times, want 1", got)
	}

	var coalesced int
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if results[i].Answer.Content != "generated once" {
			t.Errorf("caller %d answer = %q", i, results[i].Answer.Content)
		}
		if results[i].Tier != TierGenerated {
			t.Errorf("caller %d tier = %q, want %q", i, results[i].Tier, TierGenerated)
		}
		if results[i].Coalesced {
			coalesced++
		}
	}
	if coalesced != callers-1 {
		t.Errorf("coalesced callers = %d, want %d", coalesced, callers-1)
	}

	// The generated answer was cached.
	res, err := cache.Get(ctx, testRequest())
	if err != nil || !res.Hit || res.Tier != TierL1 {
		t.Errorf("Get() after generation = %+v, %v; want l1 hit", res, err)
	}
}

func TestCache_GetOrGenerate_StalledLeader(t *testing.T) {
	var calls atomic.Int64
	leaderStall := make(chan struct{})

	gen := GeneratorFunc(func(ctx context.Context, req Request) (Answer, error) {
		if calls.Add(1) == 1 {
			<-leaderStall
			return Answer{Content: "slow"}, nil
		}
		return Answer{Content: "fast"}, nil
	})

	cache, err := New(
		WithGenerator(gen),
		WithCoalesceTimeout(50*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	leaderDone := make(chan Result, 1)
	go func() {
		res, _ := cache.GetOrGenerate(ctx, testRequest())
		leaderDone <- res
	}()

	// Give the leader time to enter the generator, then follow.
	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	res, err := cache.GetOrGenerate(ctx, testRequest())
	waited := time.Since(start)

	if err != nil {
		t.Fatalf("follower error = %v", err)
	}
	if res.Answer.Content != "fast" {
		t.Errorf("follower answer = %q, want independent generation", res.Answer.Content)
	}
	if res.Coalesced {
		t.Error("follower reported coalesced after timing out")
	}
	if waited > 400*time.Millisecond {
		t.Errorf("follower waited %v, want roughly the coalesce timeout", waited)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("generator ran %d times, want 2", got)
	}

	close(leaderStall)
	leader := <-leaderDone
	if leader.Answer.Content != "slow" {
		t.Errorf("leader answer = %q, want its own generation", leader.Answer.Content)
	}
}

func TestCache_GeneratorError_NotCached(t *testing.T) {
	genErr := errors.New("model overloaded")
	var calls atomic.Int64
	gen := GeneratorFunc(func(ctx context.Context, req Request) (Answer, error) {
		if calls.Add(1) == 1 {
			return Answer{}, genErr
		}
		return Answer{Content: "recovered"}, nil
	})

	cache, err := New(WithGenerator(gen))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	if _, err := cache.GetOrGenerate(ctx, testRequest()); !errors.Is(err, genErr) {
		t.Fatalf("GetOrGenerate() error = %v, want %v", err, genErr)
	}

	// The failure was not cached.
	res, err := cache.Get(ctx, testRequest())
	if err != nil || res.Hit {
		t.Fatalf("Get() after failed generation = %+v, %v; want miss", res, err)
	}

	res, err = cache.GetOrGenerate(ctx, testRequest())
	if err != nil {
		t.Fatalf("GetOrGenerate() retry error = %v", err)
	}
	if res.Answer.Content != "recovered" {
		t.Errorf("retry answer = %q, want %q", res.Answer.Content, "recovered")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("generator ran %d times, want 2", got)
	}
}

func TestCache_GetOrGenerate_NoGenerator(t *testing.T) {
	cache, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	if _, err := cache.GetOrGenerate(context.Background(), testRequest()); !errors.Is(err, ErrNoGenerator) {
		t.Errorf("GetOrGenerate() error = %v, want ErrNoGenerator", err)
	}
}

func TestCache_SemanticMatch(t *testing.T) {
	cache, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	stored := Request{UserID: "u-1", BookID: "gatsby", Query: "what is the plot summary"}
	if err := cache.Set(ctx, stored, Answer{Content: "A man reinvents himself for love."}, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	rephrased := Request{UserID: "u-1", BookID: "gatsby", Query: "what is the plot summary of the book"}
	res, err := cache.Get(ctx, rephrased)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !res.Hit || res.Tier != TierSemantic {
		t.Fatalf("Get() = %+v, want semantic hit", res)
	}
	if res.Answer.Content != "A man reinvents himself for love." {
		t.Errorf("Answer = %q", res.Answer.Content)
	}
	if res.Score <= 0.5 || res.Score > 1 {
		t.Errorf("Score = %v, want above threshold", res.Score)
	}
	if got := cache.Stats().Total.SemanticHits; got != 1 {
		t.Errorf("SemanticHits = %d, want 1", got)
	}

	// An unrelated question stays a miss.
	unrelated := Request{UserID: "u-1", BookID: "gatsby", Query: "how long is chapter nine"}
	res, err = cache.Get(ctx, unrelated)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Hit {
		t.Errorf("unrelated query hit via %q", res.Tier)
	}

	// A different user never sees the match.
	other := Request{UserID: "u-2", BookID: "gatsby", Query: "plot summary of the book"}
	res, err = cache.Get(ctx, other)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Hit {
		t.Error("semantic match crossed user scope")
	}
}

func TestCache_Invalidate(t *testing.T) {
	shared := memtier.New(0)
	defer shared.Close()

	cache, err := New(WithRemote(shared))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	sets := []Request{
		{UserID: "u-1", BookID: "book-1", Query: "what is the plot summary"},
		{BookID: "book-1", Public: true, Query: "who wrote this"},
		{UserID: "u-1", BookID: "book-2", Query: "what is the plot summary"},
	}
	for i, req := range sets {
		if err := cache.Set(ctx, req, Answer{Content: fmt.Sprintf("answer %d", i)}, 0); err != nil {
			t.Fatalf("Set(%d) error = %v", i, err)
		}
	}
	waitForLen(t, shared, 3)

	removed, err := cache.Invalidate(ctx, "book-1")
	if err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if removed != 4 { // two entries, each in both tiers
		t.Errorf("Invalidate() removed %d, want 4", removed)
	}

	for _, req := range sets[:2] {
		res, err := cache.Get(ctx, req)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if res.Hit {
			t.Errorf("entry for %q survived invalidation", req.Query)
		}
	}

	// The semantic window for the book is gone too.
	rephrased := Request{UserID: "u-1", BookID: "book-1", Query: "plot summary of the book"}
	if res, _ := cache.Get(ctx, rephrased); res.Hit {
		t.Error("semantic window survived invalidation")
	}

	// The other book is untouched.
	res, err := cache.Get(ctx, sets[2])
	if err != nil || !res.Hit {
		t.Fatalf("Get() untouched book = %+v, %v; want hit", res, err)
	}

	// Invalidation removals are not evictions.
	if got := cache.Stats().Total.Evictions; got != 0 {
		t.Errorf("Evictions = %d, want 0", got)
	}

	if _, err := cache.Invalidate(ctx, ""); !errors.Is(err, ErrNoBook) {
		t.Errorf("Invalidate(\"\") error = %v, want ErrNoBook", err)
	}
}

func TestCache_Stats_Window(t *testing.T) {
	clock := newFakeClock()
	cache, err := New(
		WithClock(clock.Now),
		WithStatsWindow(3*time.Second),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Set(ctx, testRequest(), Answer{Content: "a"}, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := cache.Get(ctx, testRequest()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	st := cache.Stats()
	if st.Total.L1Hits != 1 || st.Window.L1Hits != 1 {
		t.Fatalf("stats before aging = %+v", st)
	}
	if st.WindowDuration != 3*time.Second {
		t.Errorf("WindowDuration = %v, want 3s", st.WindowDuration)
	}

	clock.Advance(4 * time.Second)
	st = cache.Stats()
	if st.Window.L1Hits != 0 {
		t.Errorf("window hits = %d after aging, want 0", st.Window.L1Hits)
	}
	if st.Total.L1Hits != 1 {
		t.Errorf("total hits = %d after aging, want 1", st.Total.L1Hits)
	}
}

func TestCache_HitRate(t *testing.T) {
	counts := AccessCounts{L1Hits: 6, L2Hits: 2, SemanticHits: 1, Misses: 3}
	if got := counts.Lookups(); got != 12 {
		t.Errorf("Lookups() = %d, want 12", got)
	}
	if got := counts.HitRate(); got != 0.75 {
		t.Errorf("HitRate() = %v, want 0.75", got)
	}
	if got := (AccessCounts{}).HitRate(); got != 0 {
		t.Errorf("HitRate() on zero counts = %v, want 0", got)
	}
}

func TestCache_Close(t *testing.T) {
	cache, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := cache.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := cache.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() error = %v, want ErrClosed", err)
	}

	ctx := context.Background()
	if _, err := cache.Get(ctx, testRequest()); !errors.Is(err, ErrClosed) {
		t.Errorf("Get() after close error = %v, want ErrClosed", err)
	}
	if err := cache.Set(ctx, testRequest(), Answer{Content: "a"}, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Set() after close error = %v, want ErrClosed", err)
	}
	if _, err := cache.GetOrGenerate(ctx, testRequest()); !errors.Is(err, ErrClosed) {
		t.Errorf("GetOrGenerate() after close error = %v, want ErrClosed", err)
	}
	if _, err := cache.Invalidate(ctx, "b"); !errors.Is(err, ErrClosed) {
		t.Errorf("Invalidate() after close error = %v, want ErrClosed", err)
	}
}

func TestNew_BadThreshold(t *testing.T) {
	if _, err := New(WithSemanticThreshold(1.5)); err == nil {
		t.Error("New() accepted threshold above 1")
	}
	if _, err := New(WithSemanticThreshold(-0.1)); err == nil {
		t.Error("New() accepted negative threshold")
	}
}

func TestNew_BadCapacity(t *testing.T) {
	if _, err := New(WithL1MaxEntries(0)); err == nil {
		t.Error("New() accepted zero entry capacity")
	}
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		in   string
		want Intent
	}{
		{"chat", IntentChat},
		{"knowledge", IntentKnowledge},
		{"translate", IntentTranslate},
		{"TRANSLATE", IntentTranslate},
		{"  knowledge  ", IntentKnowledge},
		{"", IntentChat},
		{"summarize", IntentChat},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseIntent(tt.in); got != tt.want {
				t.Errorf("ParseIntent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
