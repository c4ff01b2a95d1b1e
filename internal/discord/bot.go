// Package discord is the chat-platform surface: the gateway session, the
// guild slash commands and the notification sink.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/filmbot/letterboxd-bot/internal/guilds"
	"github.com/filmbot/letterboxd-bot/internal/registry"
)

// Config holds the Discord-specific settings.
type Config struct {
	Token string `mapstructure:"token" validate:"required"`
}

const handlerTimeout = 10 * time.Second

// Bot wraps the discordgo session with the application dependencies required
// for handling commands and guild membership events.
type Bot struct {
	session  *discordgo.Session
	registry *registry.Registry
	guilds   *guilds.Service
	log      *slog.Logger
}

// New builds the Discord bot. The session is configured but not yet
// connected; call Start.
func New(cfg Config, reg *registry.Registry, gs *guilds.Service, log *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("initialize discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	if log == nil {
		log = slog.Default()
	}

	b := &Bot{
		session:  session,
		registry: reg,
		guilds:   gs,
		log:      log,
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onGuildCreate)
	session.AddHandler(b.onGuildDelete)
	session.AddHandler(b.onInteraction)

	return b, nil
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	b.log.Info("closing discord session")
	return b.session.Close()
}

// Session exposes the underlying session for the notifier and health checks.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("logged in to discord", "username", r.User.Username, "guilds", len(r.Guilds))
}

// onGuildCreate fires for every guild on connect and whenever the bot is
// invited to a new one. Both paths get settings upserted and slash commands
// deployed.
func (b *Bot) onGuildCreate(s *discordgo.Session, e *discordgo.GuildCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if _, err := b.guilds.Register(ctx, e.Guild.ID, e.Guild.SystemChannelID); err != nil {
		b.log.Error("failed to register guild", "guild_id", e.Guild.ID, "error", err)
	}

	if _, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, e.Guild.ID, commands); err != nil {
		b.log.Error("failed to deploy slash commands", "guild_id", e.Guild.ID, "error", err)
		return
	}
	b.log.Debug("slash commands deployed", "guild_id", e.Guild.ID, "guild", e.Guild.Name)
}

func (b *Bot) onGuildDelete(_ *discordgo.Session, e *discordgo.GuildDelete) {
	if e.Guild.Unavailable {
		return // outage, not a kick
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if _, err := b.guilds.Remove(ctx, e.Guild.ID); err != nil {
		b.log.Error("failed to remove guild settings", "guild_id", e.Guild.ID, "error", err)
	}
	b.log.Info("left guild", "guild_id", e.Guild.ID)
}
