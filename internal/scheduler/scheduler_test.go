package scheduler

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
	"github.com/filmbot/letterboxd-bot/internal/guilds"
	"github.com/filmbot/letterboxd-bot/internal/letterboxd"
)

type fakeGuilds struct {
	settings []*guilds.Settings
}

func (f *fakeGuilds) List(context.Context) ([]*guilds.Settings, error) {
	return f.settings, nil
}

type fakeUsers struct {
	stale map[string][]*domain.User
}

func (f *fakeUsers) StaleUsers(_ context.Context, guildID string, _ time.Duration) ([]*domain.User, error) {
	return f.stale[guildID], nil
}

func (f *fakeUsers) List(_ context.Context, guildID string) ([]*domain.User, error) {
	return f.stale[guildID], nil
}

type fakePoller struct {
	mu      sync.Mutex
	items   map[string][]letterboxd.Item
	err     map[string]error
	polled  []string
}

func (f *fakePoller) Poll(_ context.Context, u *domain.User) ([]letterboxd.Item, error) {
	f.mu.Lock()
	f.polled = append(f.polled, u.Key())
	f.mu.Unlock()
	if err := f.err[u.Handle]; err != nil {
		return nil, err
	}
	return f.items[u.Handle], nil
}

type delivery struct {
	channelID string
	guid      string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []delivery
}

func (f *fakeNotifier) Notify(channelID, _ string, item letterboxd.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, delivery{channelID: channelID, guid: item.GUID})
	return nil
}

type fakeFilter struct {
	seen map[string]bool
}

func (f *fakeFilter) Seen(_ context.Context, guildID, guid string) (bool, error) {
	return f.seen[guildID+":"+guid], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func watchAt(guid string, at time.Time) letterboxd.Item {
	return letterboxd.Item{Type: letterboxd.TypeWatch, GUID: guid, PubDate: at}
}

func TestScheduler_TickDeliversInOrder(t *testing.T) {
	t0 := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	gsrc := &fakeGuilds{settings: []*guilds.Settings{{GuildID: "g1", ChannelID: "chan-1"}}}
	users := &fakeUsers{stale: map[string][]*domain.User{
		"g1": {{Handle: "alice", GuildID: "g1"}},
	}}
	pol := &fakePoller{items: map[string][]letterboxd.Item{
		"alice": {watchAt("a", t0), watchAt("b", t0.Add(time.Minute)), watchAt("c", t0.Add(2*time.Minute))},
	}}
	notifier := &fakeNotifier{}

	s := New(Config{}, gsrc, users, pol, notifier, nil, testLogger())
	s.Tick(context.Background())

	require.Len(t, notifier.sent, 3)
	assert.Equal(t, []delivery{
		{channelID: "chan-1", guid: "a"},
		{channelID: "chan-1", guid: "b"},
		{channelID: "chan-1", guid: "c"},
	}, notifier.sent)
}

func TestScheduler_TickPollsAllStaleUsers(t *testing.T) {
	gsrc := &fakeGuilds{settings: []*guilds.Settings{
		{GuildID: "g1", ChannelID: "chan-1"},
		{GuildID: "g2", ChannelID: "chan-2"},
	}}
	users := &fakeUsers{stale: map[string][]*domain.User{
		"g1": {{Handle: "alice", GuildID: "g1"}, {Handle: "bob", GuildID: "g1"}},
		"g2": {{Handle: "carol", GuildID: "g2"}},
	}}
	pol := &fakePoller{}
	notifier := &fakeNotifier{}

	s := New(Config{Concurrency: 2}, gsrc, users, pol, notifier, nil, testLogger())
	s.Tick(context.Background())

	assert.ElementsMatch(t, []string{"g1:alice", "g1:bob", "g2:carol"}, pol.polled)
}

func TestScheduler_PollFailureDoesNotAbortOthers(t *testing.T) {
	t0 := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	gsrc := &fakeGuilds{settings: []*guilds.Settings{{GuildID: "g1", ChannelID: "chan-1"}}}
	users := &fakeUsers{stale: map[string][]*domain.User{
		"g1": {{Handle: "broken", GuildID: "g1"}, {Handle: "alice", GuildID: "g1"}},
	}}
	pol := &fakePoller{
		err:   map[string]error{"broken": errors.New("store down")},
		items: map[string][]letterboxd.Item{"alice": {watchAt("a", t0)}},
	}
	notifier := &fakeNotifier{}

	s := New(Config{Concurrency: 1}, gsrc, users, pol, notifier, nil, testLogger())
	s.Tick(context.Background())

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "a", notifier.sent[0].guid)
}

func TestScheduler_DedupSuppressesDeliveredItems(t *testing.T) {
	t0 := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	gsrc := &fakeGuilds{settings: []*guilds.Settings{{GuildID: "g1", ChannelID: "chan-1"}}}
	users := &fakeUsers{stale: map[string][]*domain.User{
		"g1": {{Handle: "alice", GuildID: "g1"}},
	}}
	pol := &fakePoller{items: map[string][]letterboxd.Item{
		"alice": {watchAt("old", t0), watchAt("new", t0.Add(time.Minute))},
	}}
	notifier := &fakeNotifier{}
	filter := &fakeFilter{seen: map[string]bool{"g1:old": true}}

	s := New(Config{}, gsrc, users, pol, notifier, filter, testLogger())
	s.Tick(context.Background())

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "new", notifier.sent[0].guid)
}

func TestScheduler_NoChannelDropsItems(t *testing.T) {
	t0 := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	gsrc := &fakeGuilds{settings: []*guilds.Settings{{GuildID: "g1"}}}
	users := &fakeUsers{stale: map[string][]*domain.User{
		"g1": {{Handle: "alice", GuildID: "g1"}},
	}}
	pol := &fakePoller{items: map[string][]letterboxd.Item{"alice": {watchAt("a", t0)}}}
	notifier := &fakeNotifier{}

	s := New(Config{}, gsrc, users, pol, notifier, nil, testLogger())
	s.Tick(context.Background())

	assert.Empty(t, notifier.sent)
	assert.Len(t, pol.polled, 1, "the poll itself still runs so the watermark advances")
}

func TestScheduler_CountUsers(t *testing.T) {
	gsrc := &fakeGuilds{settings: []*guilds.Settings{
		{GuildID: "g1", ChannelID: "chan-1"},
		{GuildID: "g2", ChannelID: "chan-2"},
	}}
	users := &fakeUsers{stale: map[string][]*domain.User{
		"g1": {{Handle: "alice", GuildID: "g1"}},
		"g2": {{Handle: "bob", GuildID: "g2"}, {Handle: "carol", GuildID: "g2"}},
	}}

	s := New(Config{}, gsrc, users, &fakePoller{}, &fakeNotifier{}, nil, testLogger())
	n, err := s.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
