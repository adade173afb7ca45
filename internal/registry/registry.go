package registry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/graxinc/errutil"

	"github.com/UtakataKyosui/serenade/internal/database"
	"github.com/UtakataKyosui/serenade/internal/models"
)

// Store is the persistence collaborator behind the registry. Implementations
// report database.ErrNotFound and database.ErrConflict for the conditions the
// registry reacts to.
type Store interface {
	CreateGuild(ctx context.Context, guild models.Guild) (*models.Guild, error)
	GetGuild(ctx context.Context, guildID string) (*models.Guild, error)
	UpdateGuild(ctx context.Context, guildID string, updates map[string]any) error
	ListActiveGuilds(ctx context.Context) ([]models.Guild, error)
}

// Cache is an optional read-through cache for guild rows. Misses are cheap;
// the registry always falls back to the store.
type Cache interface {
	GetGuild(ctx context.Context, guildID string) (*models.Guild, bool)
	SetGuild(ctx context.Context, g *models.Guild)
	DeleteGuild(ctx context.Context, guildID string)
}

// Registry owns every guild mutation. Nothing else writes the guilds table.
type Registry struct {
	l     *slog.Logger
	store Store
	cache Cache
}

func NewRegistry(l *slog.Logger, store Store, cache Cache) *Registry {
	return &Registry{l: l, store: store, cache: cache}
}

// FindOrCreate returns the guild row for guildID, creating it on first sight
// and reactivating it if it was soft-deleted. Creation is check-then-act: a
// concurrent insert of the same guild surfaces as a uniqueness conflict, which
// is treated as "someone else created it" and resolved by re-fetching.
func (r *Registry) FindOrCreate(ctx context.Context, guildID string, name, owner *string) (*models.Guild, error) {
	if r.cache != nil {
		if g, ok := r.cache.GetGuild(ctx, guildID); ok && g.Active {
			return g, nil
		}
	}

	g, err := r.store.GetGuild(ctx, guildID)
	if err == nil {
		if !g.Active {
			return r.reactivate(ctx, guildID)
		}
		r.put(ctx, g)
		return g, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, errutil.With(err)
	}

	created, err := r.store.CreateGuild(ctx, models.Guild{
		GuildID:  guildID,
		Name:     name,
		OwnerID:  owner,
		JoinedAt: time.Now().UTC(),
		Active:   true,
		Settings: map[string]any{},
	})
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			r.l.Debug("lost guild insert race, re-fetching", "guild", guildID)
			return r.refetch(ctx, guildID)
		}
		return nil, errutil.With(err)
	}

	r.l.Info("registered guild", "guild", guildID)
	r.put(ctx, created)

	return created, nil
}

// UpdateParams carries the optional fields of a partial guild update. Nil
// fields are left untouched.
type UpdateParams struct {
	Name     *string
	Active   *bool
	Settings map[string]any
}

// Update applies the supplied fields to an existing guild and returns the
// refreshed row. database.ErrNotFound when no such guild exists.
func (r *Registry) Update(ctx context.Context, guildID string, params UpdateParams) (*models.Guild, error) {
	updates := map[string]any{}
	if params.Name != nil {
		updates["guild_name"] = *params.Name
	}
	if params.Active != nil {
		updates["is_active"] = *params.Active
	}
	if params.Settings != nil {
		raw, err := json.Marshal(params.Settings)
		if err != nil {
			return nil, errutil.With(err)
		}
		updates["settings"] = raw
	}

	if err := r.store.UpdateGuild(ctx, guildID, updates); err != nil {
		return nil, errutil.With(err)
	}

	if r.cache != nil {
		r.cache.DeleteGuild(ctx, guildID)
	}

	return r.refetch(ctx, guildID)
}

// SoftDelete marks a guild inactive. The row stays put.
func (r *Registry) SoftDelete(ctx context.Context, guildID string) (*models.Guild, error) {
	inactive := false
	return r.Update(ctx, guildID, UpdateParams{Active: &inactive})
}

func (r *Registry) ListActive(ctx context.Context) ([]models.Guild, error) {
	guilds, err := r.store.ListActiveGuilds(ctx)
	if err != nil {
		return nil, errutil.With(err)
	}
	return guilds, nil
}

func (r *Registry) reactivate(ctx context.Context, guildID string) (*models.Guild, error) {
	active := true
	g, err := r.Update(ctx, guildID, UpdateParams{Active: &active})
	if err != nil {
		return nil, errutil.With(err)
	}

	r.l.Info("reactivated guild", "guild", guildID)

	return g, nil
}

func (r *Registry) refetch(ctx context.Context, guildID string) (*models.Guild, error) {
	g, err := r.store.GetGuild(ctx, guildID)
	if err != nil {
		return nil, errutil.With(err)
	}
	r.put(ctx, g)
	return g, nil
}

func (r *Registry) put(ctx context.Context, g *models.Guild) {
	if r.cache != nil {
		r.cache.SetGuild(ctx, g)
	}
}
