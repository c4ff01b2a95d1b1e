// Package scheduler drives the polling loop: on a fixed cadence it finds
// stale users in every registered guild, polls them with bounded concurrency
// and forwards new feed items to the notification sink.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-pkgz/syncs"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/filmbot/letterboxd-bot/internal/domain"
	"github.com/filmbot/letterboxd-bot/internal/guilds"
	"github.com/filmbot/letterboxd-bot/internal/letterboxd"
	"github.com/filmbot/letterboxd-bot/pkg/metrics"
)

// Notifier delivers one formatted feed item to a guild channel.
type Notifier interface {
	Notify(channelID string, handle string, item letterboxd.Item) error
}

// GuildSource enumerates the guild partitions to tick over.
type GuildSource interface {
	List(ctx context.Context) ([]*guilds.Settings, error)
}

// UserSource finds users due for a poll within one guild.
type UserSource interface {
	StaleUsers(ctx context.Context, guildID string, threshold time.Duration) ([]*domain.User, error)
	List(ctx context.Context, guildID string) ([]*domain.User, error)
}

// Poller runs one user's poll cycle.
type Poller interface {
	Poll(ctx context.Context, u *domain.User) ([]letterboxd.Item, error)
}

// DeliveryFilter suppresses items that were already announced.
type DeliveryFilter interface {
	Seen(ctx context.Context, guildID, guid string) (bool, error)
}

// Config bounds the scheduler's cadence and fan-out.
type Config struct {
	// Interval between ticks of the outer loop.
	Interval time.Duration `mapstructure:"interval"`
	// Staleness is the minimum gap between successive polls of one user.
	// Decoupled from Interval so the loop can run more often than any
	// single user is polled.
	Staleness time.Duration `mapstructure:"staleness"`
	// Concurrency caps in-flight polls across all guilds.
	Concurrency int `mapstructure:"concurrency"`
}

func (c *Config) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.Staleness <= 0 {
		c.Staleness = 10 * time.Minute
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
}

// Scheduler owns the recurring poll loop.
type Scheduler struct {
	cfg      Config
	guilds   GuildSource
	users    UserSource
	poller   Poller
	notifier Notifier
	filter   DeliveryFilter
	log      *slog.Logger

	cron *cron.Cron
}

// New assembles a Scheduler. filter may be nil to disable GUID deduplication.
func New(cfg Config, gs GuildSource, us UserSource, p Poller, n Notifier, f DeliveryFilter, log *slog.Logger) *Scheduler {
	cfg.setDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cfg:      cfg,
		guilds:   gs,
		users:    us,
		poller:   p,
		notifier: n,
		filter:   f,
		log:      log,
	}
}

// Start launches the cron-driven loop. An overrunning tick is skipped rather
// than stacked; users left fresh by the previous tick are picked up on the
// next one.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := s.cron.AddFunc("@every "+s.cfg.Interval.String(), func() {
		s.Tick(ctx)
	})
	if err != nil {
		return err
	}

	s.log.Info("scheduler started", "interval", s.cfg.Interval,
		"staleness", s.cfg.Staleness, "concurrency", s.cfg.Concurrency)
	s.cron.Start()
	return nil
}

// Stop halts the loop and waits for any running tick to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("scheduler stopped")
	return nil
}

// Tick runs one pass over all guilds. Failures are local: a broken guild or
// user never aborts the rest of the pass.
func (s *Scheduler) Tick(ctx context.Context) {
	cycle := uuid.NewString()[:8]
	log := s.log.With("cycle", cycle)

	settings, err := s.guilds.List(ctx)
	if err != nil {
		log.Error("failed to list guilds", "error", err)
		return
	}

	swg := syncs.NewSizedGroup(s.cfg.Concurrency, syncs.Context(ctx), syncs.Preemptive)
	for _, gs := range settings {
		gs := gs
		stale, err := s.users.StaleUsers(ctx, gs.GuildID, s.cfg.Staleness)
		if err != nil {
			log.Error("failed to compute stale users", "guild_id", gs.GuildID, "error", err)
			continue
		}
		if len(stale) == 0 {
			continue
		}
		log.Debug("polling stale users", "guild_id", gs.GuildID, "count", len(stale))

		for _, u := range stale {
			u := u
			swg.Go(func(ctx context.Context) {
				s.pollUser(ctx, log, gs, u)
			})
		}
	}
	swg.Wait()
}

// pollUser runs one user's cycle and delivers the results in order.
func (s *Scheduler) pollUser(ctx context.Context, log *slog.Logger, gs *guilds.Settings, u *domain.User) {
	items, err := s.poller.Poll(ctx, u)
	if err != nil {
		log.Error("poll failed", "guild_id", u.GuildID, "handle", u.Handle, "error", err)
		return
	}
	if len(items) == 0 {
		return
	}
	if gs.ChannelID == "" {
		log.Warn("guild has no notification channel, dropping items",
			"guild_id", u.GuildID, "items", len(items))
		return
	}

	for _, item := range items {
		if s.filter != nil {
			seen, err := s.filter.Seen(ctx, u.GuildID, item.GUID)
			if err != nil {
				log.Warn("dedup check failed, delivering anyway",
					"guild_id", u.GuildID, "guid", item.GUID, "error", err)
			} else if seen {
				log.Debug("suppressing already delivered item",
					"guild_id", u.GuildID, "guid", item.GUID)
				continue
			}
		}

		if err := s.notifier.Notify(gs.ChannelID, u.Handle, item); err != nil {
			log.Warn("notification send failed", "guild_id", u.GuildID,
				"channel_id", gs.ChannelID, "error", err)
			metrics.RecordNotifyError()
			continue
		}
		metrics.RecordDelivered(string(item.Type))
	}
}

// CountUsers sums tracked users across all guilds, feeding the metrics gauge.
func (s *Scheduler) CountUsers(ctx context.Context) (int, error) {
	settings, err := s.guilds.List(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, gs := range settings {
		users, err := s.users.List(ctx, gs.GuildID)
		if err != nil {
			return 0, err
		}
		total += len(users)
	}
	return total, nil
}
