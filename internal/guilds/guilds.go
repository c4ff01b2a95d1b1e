// Package guilds stores per-guild bot settings, primarily the channel that
// receives feed notifications.
package guilds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/filmbot/letterboxd-bot/internal/domain"
	"github.com/filmbot/letterboxd-bot/internal/store"
)

// Namespace under which guild settings are stored, keyed by guild ID.
const Namespace = "guilds"

// Settings holds the per-guild configuration.
type Settings struct {
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Service provides CRUD over guild settings. The set of stored guilds is also
// the set of partitions the scheduler ticks over.
type Service struct {
	store store.Store
	log   *slog.Logger
}

// NewService creates a store-backed guild settings service.
func NewService(st store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: st, log: log}
}

// Get returns the settings for guildID, or domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, guildID string) (*Settings, error) {
	data, err := s.store.Get(ctx, Namespace, guildID)
	if err != nil {
		return nil, err
	}
	var gs Settings
	if err := json.Unmarshal(data, &gs); err != nil {
		return nil, fmt.Errorf("decode guild settings %s: %w", guildID, err)
	}
	return &gs, nil
}

// Register records a newly joined guild with its default notification
// channel. An already registered guild keeps its current channel.
func (s *Service) Register(ctx context.Context, guildID, defaultChannelID string) (*Settings, error) {
	if existing, err := s.Get(ctx, guildID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	gs := &Settings{
		GuildID:   guildID,
		ChannelID: defaultChannelID,
		JoinedAt:  time.Now(),
	}
	if err := s.save(ctx, gs); err != nil {
		return nil, err
	}
	s.log.Info("registered guild", "guild_id", guildID, "channel_id", defaultChannelID)
	return gs, nil
}

// SetChannel points the guild's notifications at channelID.
func (s *Service) SetChannel(ctx context.Context, guildID, channelID string) error {
	gs, err := s.Get(ctx, guildID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		gs = &Settings{GuildID: guildID, JoinedAt: time.Now()}
	}
	gs.ChannelID = channelID
	return s.save(ctx, gs)
}

// Remove forgets the guild, typically after the bot is kicked.
func (s *Service) Remove(ctx context.Context, guildID string) (bool, error) {
	removed, err := s.store.Delete(ctx, Namespace, guildID)
	if err != nil {
		return false, fmt.Errorf("remove guild %s: %w", guildID, err)
	}
	return removed, nil
}

// List enumerates all registered guilds.
func (s *Service) List(ctx context.Context) ([]*Settings, error) {
	keys, err := s.store.ScanKeys(ctx, Namespace, "")
	if err != nil {
		return nil, fmt.Errorf("list guilds: %w", err)
	}

	out := make([]*Settings, 0, len(keys))
	for _, key := range keys {
		gs, err := s.Get(ctx, key)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, gs)
	}
	return out, nil
}

func (s *Service) save(ctx context.Context, gs *Settings) error {
	data, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("encode guild settings %s: %w", gs.GuildID, err)
	}
	if err := s.store.Set(ctx, Namespace, gs.GuildID, data); err != nil {
		return fmt.Errorf("persist guild settings %s: %w", gs.GuildID, err)
	}
	return nil
}
