package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmbot/letterboxd-bot/internal/domain"
	"github.com/filmbot/letterboxd-bot/internal/letterboxd"
)

type fakeProvider struct {
	items []letterboxd.Item
	err   error
}

func (f *fakeProvider) Fetch(context.Context, string) ([]letterboxd.Item, error) {
	return f.items, f.err
}

type fakeSaver struct {
	mu    sync.Mutex
	saved []domain.User
	err   error
}

func (f *fakeSaver) Save(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *u)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func watchAt(guid string, at time.Time) letterboxd.Item {
	return letterboxd.Item{Type: letterboxd.TypeWatch, GUID: guid, PubDate: at}
}

func TestPoller_DiffAgainstWatermark(t *testing.T) {
	t0 := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{items: []letterboxd.Item{
		watchAt("old", t0.Add(-time.Second)),
		watchAt("boundary", t0),
		watchAt("new", t0.Add(5*time.Second)),
	}}
	saver := &fakeSaver{}
	p := New(provider, saver, testLogger())

	u := &domain.User{Handle: "alice", GuildID: "g1", UpdatedAt: t0}
	before := time.Now()

	items, err := p.Poll(context.Background(), u)
	require.NoError(t, err)

	// inclusive boundary: the item timestamped exactly at the watermark is new
	require.Len(t, items, 2)
	assert.Equal(t, "boundary", items[0].GUID)
	assert.Equal(t, "new", items[1].GUID)

	assert.True(t, u.UpdatedAt.Equal(t0.Add(5*time.Second)), "watermark advances to max pub date")
	assert.False(t, u.LastCheckedAt.Before(before))
	require.Len(t, saver.saved, 1)
	assert.True(t, saver.saved[0].UpdatedAt.Equal(u.UpdatedAt))
}

func TestPoller_ReturnsAscendingOrder(t *testing.T) {
	t0 := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{items: []letterboxd.Item{
		watchAt("c", t0.Add(3*time.Minute)),
		watchAt("a", t0.Add(time.Minute)),
		watchAt("b", t0.Add(2*time.Minute)),
	}}
	p := New(provider, &fakeSaver{}, testLogger())

	u := &domain.User{Handle: "alice", GuildID: "g1", UpdatedAt: t0}
	items, err := p.Poll(context.Background(), u)
	require.NoError(t, err)

	require.Len(t, items, 3)
	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].PubDate.Before(items[i-1].PubDate))
	}
}

func TestPoller_DropsNonNotifiable(t *testing.T) {
	t0 := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{items: []letterboxd.Item{
		{Type: letterboxd.TypeUnknown, GUID: "list", PubDate: t0.Add(time.Minute)},
		watchAt("watch", t0.Add(time.Minute)),
	}}
	p := New(provider, &fakeSaver{}, testLogger())

	u := &domain.User{Handle: "alice", GuildID: "g1", UpdatedAt: t0}
	items, err := p.Poll(context.Background(), u)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "watch", items[0].GUID)
}

func TestPoller_FetchFailure(t *testing.T) {
	provider := &fakeProvider{err: domain.ErrFeedFetch}
	saver := &fakeSaver{}
	p := New(provider, saver, testLogger())

	t0 := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	u := &domain.User{Handle: "alice", GuildID: "g1", UpdatedAt: t0}
	before := time.Now()

	items, err := p.Poll(context.Background(), u)
	require.NoError(t, err, "a failing feed degrades to an empty result")
	assert.Empty(t, items)

	assert.True(t, u.UpdatedAt.Equal(t0), "watermark must not move on failure")
	assert.False(t, u.LastCheckedAt.Before(before), "failed polls still count as checked")
	require.Len(t, saver.saved, 1)
}

func TestPoller_PersistFailureWithholdsItems(t *testing.T) {
	t0 := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{items: []letterboxd.Item{watchAt("new", t0.Add(time.Minute))}}
	saver := &fakeSaver{err: errors.New("store down")}
	p := New(provider, saver, testLogger())

	u := &domain.User{Handle: "alice", GuildID: "g1", UpdatedAt: t0}
	items, err := p.Poll(context.Background(), u)

	require.Error(t, err)
	assert.Empty(t, items, "items are not delivered until the watermark is persisted")
	assert.True(t, u.UpdatedAt.Equal(t0), "in-memory watermark stays put for the retry")
}

func TestPoller_EmptyFeedStillAdvancesLastChecked(t *testing.T) {
	saver := &fakeSaver{}
	p := New(&fakeProvider{}, saver, testLogger())

	t0 := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	u := &domain.User{Handle: "alice", GuildID: "g1", UpdatedAt: t0}

	items, err := p.Poll(context.Background(), u)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.True(t, u.UpdatedAt.Equal(t0))
	assert.False(t, u.LastCheckedAt.IsZero())
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	var counter, max int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.lock("g1:alice")
			defer unlock()

			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, max, "only one holder per key at a time")

	km.mu.Lock()
	assert.Empty(t, km.locks, "entries are dropped after the last release")
	km.mu.Unlock()
}
