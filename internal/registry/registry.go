// Package registry implements the per-guild registry of tracked Letterboxd
// handles on top of the key-value store.
package registry

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

// Namespace under which user records are stored. Keys are
// "<guildID>:<handle>".
const Namespace = "users"

// MemberChecker verifies that a handle exists on Letterboxd.
type MemberChecker interface {
	UserExists(ctx context.Context, handle string) (bool, error)
}

// Registry provides CRUD and enumeration over user records scoped by guild.
// All mutating operations persist synchronously before returning.
type Registry struct {
	store   store.Store
	checker MemberChecker
	log     *slog.Logger
	now     func() time.Time
}

// New creates a Registry backed by the given store. checker is consulted once
// per first-time Add to confirm the handle exists on Letterboxd.
func New(st store.Store, checker MemberChecker, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{store: st, checker: checker, log: log, now: time.Now}
}

// Get loads the record for the normalized form of rawHandle, or
// domain.ErrNotFound.
func (r *Registry) Get(ctx context.Context, guildID, rawHandle string) (*domain.User, error) {
	handle, err := NormalizeHandle(rawHandle)
	if err != nil {
		return nil, err
	}
	return r.load(ctx, guildID, handle)
}

// List enumerates all records under the guild partition. Order is
// unspecified.
func (r *Registry) List(ctx context.Context, guildID string) ([]*domain.User, error) {
	keys, err := r.store.ScanKeys(ctx, Namespace, guildID+":")
	if err != nil {
		return nil, fmt.Errorf("list users for guild %s: %w", guildID, err)
	}

	users := make([]*domain.User, 0, len(keys))
	for _, key := range keys {
		data, err := r.store.Get(ctx, Namespace, key)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue // removed between scan and get
			}
			return nil, err
		}
		u, err := decodeUser(data)
		if err != nil {
			r.log.Warn("skipping undecodable user record", "key", key, "error", err)
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// Add registers rawHandle in the guild. The first insert validates the handle
// against Letterboxd and initializes both timestamps to now. Re-adding an
// existing handle is a no-op returning the stored record, so the watermark is
// never reset.
func (r *Registry) Add(ctx context.Context, guildID, rawHandle string) (*domain.User, error) {
	handle, err := NormalizeHandle(rawHandle)
	if err != nil {
		return nil, err
	}

	existing, err := r.load(ctx, guildID, handle)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	ok, err := r.checker.UserExists(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("validate handle %q: %w", handle, err)
	}
	if !ok {
		return nil, domain.ErrUnknownUser
	}

	now := r.now()
	u := &domain.User{
		Handle:    handle,
		GuildID:   guildID,
		CreatedAt: now,
		UpdatedAt: now,
		Loaded:    true,
	}
	if err := r.Save(ctx, u); err != nil {
		return nil, err
	}

	r.log.Info("tracking new letterboxd user", "guild_id", guildID, "handle", handle)
	return u, nil
}

// Remove deletes the record for rawHandle and reports whether a deletion
// occurred.
func (r *Registry) Remove(ctx context.Context, guildID, rawHandle string) (bool, error) {
	handle, err := NormalizeHandle(rawHandle)
	if err != nil {
		return false, err
	}

	removed, err := r.store.Delete(ctx, Namespace, guildID+":"+handle)
	if err != nil {
		return false, fmt.Errorf("remove %s from guild %s: %w", handle, guildID, err)
	}
	if removed {
		r.log.Info("stopped tracking letterboxd user", "guild_id", guildID, "handle", handle)
	}
	return removed, nil
}

// StaleUsers returns every record in the guild that has never been checked or
// whose last check is older than threshold. This is the scheduling gate that
// prevents re-polling a user within the threshold window.
func (r *Registry) StaleUsers(ctx context.Context, guildID string, threshold time.Duration) ([]*domain.User, error) {
	users, err := r.List(ctx, guildID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	stale := users[:0]
	for _, u := range users {
		if u.Stale(now, threshold) {
			stale = append(stale, u)
		}
	}
	return stale, nil
}

// Save persists the record. Used by Add and by the poller to advance
// UpdatedAt/LastCheckedAt after a poll cycle.
func (r *Registry) Save(ctx context.Context, u *domain.User) error {
	if u.Handle == "" {
		return domain.ErrInvalidHandle
	}
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", u.Key(), err)
	}
	if err := r.store.Set(ctx, Namespace, u.Key(), data); err != nil {
		return fmt.Errorf("persist user %s: %w", u.Key(), err)
	}
	u.Loaded = true
	return nil
}

func (r *Registry) load(ctx context.Context, guildID, handle string) (*domain.User, error) {
	data, err := r.store.Get(ctx, Namespace, guildID+":"+handle)
	if err != nil {
		return nil, err
	}
	u, err := decodeUser(data)
	if err != nil {
		return nil, fmt.Errorf("decode user %s:%s: %w", guildID, handle, err)
	}
	return u, nil
}

func decodeUser(data []byte) (*domain.User, error) {
	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	u.Loaded = true
	return &u, nil
}
