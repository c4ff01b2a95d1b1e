// Package poller implements the feed diffing cycle: fetch a tracked user's
// activity feed, keep only entries at or past the delivery watermark, advance
// the watermark and persist it before anything is considered delivered.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/filmbot/letterboxd-bot/internal/domain"
	"github.com/filmbot/letterboxd-bot/internal/letterboxd"
	"github.com/filmbot/letterboxd-bot/pkg/metrics"
)

// Provider fetches raw feed entries for a handle.
type Provider interface {
	Fetch(ctx context.Context, handle string) ([]letterboxd.Item, error)
}

// Saver persists an updated user record.
type Saver interface {
	Save(ctx context.Context, u *domain.User) error
}

// Poller runs poll cycles for individual users. Polls for the same
// (guild, handle) pair are serialized by an in-memory keyed lock; polls for
// different users run concurrently.
type Poller struct {
	provider Provider
	saver    Saver
	log      *slog.Logger
	now      func() time.Time
	locks    *keyedMutex
}

// New creates a Poller.
func New(provider Provider, saver Saver, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		provider: provider,
		saver:    saver,
		log:      log,
		now:      time.Now,
		locks:    newKeyedMutex(),
	}
}

// Poll fetches u's feed and returns the new notifiable items in ascending
// PubDate order. The boundary is inclusive: an item timestamped exactly at
// the watermark is still new, which tolerates second-granularity feed
// timestamps at the cost of a possible re-delivery across restarts.
//
// On fetch failure the poll degrades to an empty result: LastCheckedAt still
// advances (so a persistently failing feed does not starve other users in
// staleness order) but the watermark does not move.
func (p *Poller) Poll(ctx context.Context, u *domain.User) ([]letterboxd.Item, error) {
	unlock := p.locks.lock(u.Key())
	defer unlock()

	started := p.now()
	defer func() {
		metrics.ObservePollDuration(p.now().Sub(started))
	}()

	raw, err := p.provider.Fetch(ctx, u.Handle)
	if err != nil {
		p.log.Warn("feed fetch failed", "guild_id", u.GuildID, "handle", u.Handle, "error", err)
		metrics.RecordPoll("fetch_error")

		u.LastCheckedAt = p.now()
		if serr := p.saver.Save(ctx, u); serr != nil {
			p.log.Error("failed to persist last-checked time", "guild_id", u.GuildID, "handle", u.Handle, "error", serr)
		}
		return nil, nil
	}

	fresh := diff(raw, u.UpdatedAt)

	updated := *u
	updated.LastCheckedAt = p.now()
	if len(fresh) > 0 {
		updated.UpdatedAt = fresh[len(fresh)-1].PubDate
	}

	// The watermark must land in the store before the items count as
	// delivered. If this write fails the items are withheld and the next
	// tick recomputes them, bounding duplicate delivery to one extra cycle.
	if err := p.saver.Save(ctx, &updated); err != nil {
		metrics.RecordPoll("persist_error")
		return nil, fmt.Errorf("persist watermark for %s: %w", u.Key(), err)
	}
	*u = updated

	metrics.RecordPoll("ok")
	if len(fresh) > 0 {
		p.log.Info("new feed activity", "guild_id", u.GuildID, "handle", u.Handle,
			"items", len(fresh), "watermark", u.UpdatedAt)
	}
	return fresh, nil
}

// diff keeps notifiable items with PubDate at or past the watermark, sorted
// ascending by PubDate for deterministic delivery order.
func diff(raw []letterboxd.Item, watermark time.Time) []letterboxd.Item {
	var fresh []letterboxd.Item
	for _, it := range raw {
		if !it.Notifiable() {
			continue
		}
		if it.PubDate.Before(watermark) {
			continue
		}
		fresh = append(fresh, it)
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].PubDate.Before(fresh[j].PubDate)
	})
	return fresh
}
