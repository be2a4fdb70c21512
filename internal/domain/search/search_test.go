package search

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/agrilink/storefront/internal/client"
	"github.com/agrilink/storefront/internal/storage/local"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDebouncer_RunsLastQueryOnly(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan struct{}, 10)
	d := NewDebouncer(context.Background(), 30*time.Millisecond, func(_ context.Context, q string) {
		mu.Lock()
		got = append(got, q)
		mu.Unlock()
		done <- struct{}{}
	})
	defer d.Close()

	for _, q := range []string{"t", "to", "tom", "toma"} {
		d.Trigger(q)
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced query did not run")
	}
	// Allow any wrongly scheduled extra run to show up.
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"toma"}, got)
}

func TestDebouncer_CancelsInFlightQuery(t *testing.T) {
	started := make(chan string, 2)
	canceled := make(chan string, 2)
	d := NewDebouncer(context.Background(), 10*time.Millisecond, func(ctx context.Context, q string) {
		started <- q
		select {
		case <-ctx.Done():
			canceled <- q
		case <-time.After(time.Second):
		}
	})

	d.Trigger("slow")
	require.Equal(t, "slow", <-started)

	d.Trigger("next")
	select {
	case q := <-canceled:
		assert.Equal(t, "slow", q)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight query was not cancelled")
	}
	require.Equal(t, "next", <-started)

	d.Close()
	select {
	case q := <-canceled:
		assert.Equal(t, "next", q, "close cancels the running query")
	default:
		t.Fatal("close did not cancel the running query")
	}
}

func TestDebouncer_CloseDropsPending(t *testing.T) {
	ran := make(chan struct{}, 1)
	d := NewDebouncer(context.Background(), 20*time.Millisecond, func(context.Context, string) {
		ran <- struct{}{}
	})

	d.Trigger("x")
	d.Close()
	d.Trigger("y")

	select {
	case <-ran:
		t.Fatal("query ran after close")
	case <-time.After(60 * time.Millisecond):
	}
}

func openStore(t *testing.T) *local.Store {
	t.Helper()
	store, err := local.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecent_Record(t *testing.T) {
	r := NewRecent(openStore(t))
	ctx := context.Background()

	list, err := r.List(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = r.Record(ctx, "p", "tomato")
	require.NoError(t, err)
	_, err = r.Record(ctx, "p", "onion")
	require.NoError(t, err)
	list, err = r.Record(ctx, "p", "  Tomato ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Tomato", "onion"}, list)

	list, err = r.Record(ctx, "p", "   ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Tomato", "onion"}, list)

	require.NoError(t, r.Clear(ctx, "p"))
	list, err = r.List(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRecent_KeepsTen(t *testing.T) {
	r := NewRecent(openStore(t))
	ctx := context.Background()

	var list []string
	var err error
	for i := range 15 {
		list, err = r.Record(ctx, "p", fmt.Sprintf("q%d", i))
		require.NoError(t, err)
	}
	require.Len(t, list, MaxRecent)
	assert.Equal(t, "q14", list[0])
	assert.Equal(t, "q5", list[MaxRecent-1])
}

func TestRecent_ConcurrentRecords(t *testing.T) {
	r := NewRecent(openStore(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range MaxRecent {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Record(ctx, "p", fmt.Sprintf("q%d", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := r.List(ctx, "p")
	require.NoError(t, err)
	assert.Len(t, list, MaxRecent)
}

type mockMarket struct {
	queries []string
	err     error
}

func (m *mockMarket) Search(_ context.Context, q string, _, _ int) (*client.ListingPage, error) {
	m.queries = append(m.queries, q)
	if m.err != nil {
		return nil, m.err
	}
	return &client.ListingPage{Content: []client.Listing{{ID: "l1", Title: q}}, TotalElements: 1}, nil
}

func TestService_SubmitRecordsHistory(t *testing.T) {
	store := openStore(t)
	market := &mockMarket{}
	svc := NewService(market, NewRecent(store), zap.NewNop())
	ctx := context.Background()

	_, err := svc.Submit(ctx, "p", " ", 0, 0)
	require.ErrorIs(t, err, ErrEmptyQuery)

	page, err := svc.Submit(ctx, "p", "mango", 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalElements)

	list, err := svc.Recent().List(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"mango"}, list)

	market.err = errors.New("down")
	_, err = svc.Submit(ctx, "p", "guava", 0, 20)
	require.Error(t, err)
	list, err = svc.Recent().List(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"guava", "mango"}, list, "history is recorded before the upstream call")
}

func TestService_SuggestSkipsShortQueries(t *testing.T) {
	market := &mockMarket{}
	svc := NewService(market, NewRecent(openStore(t)), zap.NewNop())

	page, err := svc.Suggest(context.Background(), "m", 5)
	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.Empty(t, market.queries)

	page, err = svc.Suggest(context.Background(), "ma", 5)
	require.NoError(t, err)
	assert.Len(t, page.Content, 1)
}
