package guilds

import (
	"context"
	"io"
	"log/slog"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmbot/letterboxd-bot/internal/domain"
	"github.com/filmbot/letterboxd-bot/internal/store"
	appredis "github.com/filmbot/letterboxd-bot/pkg/redis"
)

func setupService(t *testing.T) *Service {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store.NewRedisStore(&appredis.Client{Client: client}, log), log)
}

func TestService_RegisterAndGet(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	gs, err := svc.Register(ctx, "guild-1", "chan-1")
	require.NoError(t, err)
	assert.Equal(t, "chan-1", gs.ChannelID)
	assert.False(t, gs.JoinedAt.IsZero())

	got, err := svc.Get(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, "chan-1", got.ChannelID)
}

func TestService_RegisterKeepsExistingChannel(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "guild-1", "chan-1")
	require.NoError(t, err)
	require.NoError(t, svc.SetChannel(ctx, "guild-1", "chan-2"))

	// reconnect fires guild registration again with the default channel
	gs, err := svc.Register(ctx, "guild-1", "chan-1")
	require.NoError(t, err)
	assert.Equal(t, "chan-2", gs.ChannelID)
}

func TestService_SetChannelCreatesWhenMissing(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetChannel(ctx, "guild-9", "chan-9"))

	gs, err := svc.Get(ctx, "guild-9")
	require.NoError(t, err)
	assert.Equal(t, "chan-9", gs.ChannelID)
}

func TestService_ListAndRemove(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "guild-1", "chan-1")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "guild-2", "chan-2")
	require.NoError(t, err)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	removed, err := svc.Remove(ctx, "guild-1")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = svc.Get(ctx, "guild-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	removed, err = svc.Remove(ctx, "guild-1")
	require.NoError(t, err)
	assert.False(t, removed)
}
