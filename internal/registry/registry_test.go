package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/graxinc/errutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UtakataKyosui/serenade/internal/database"
	"github.com/UtakataKyosui/serenade/internal/models"
)

type fakeStore struct {
	guilds  map[string]*models.Guild
	inserts int
	nextID  int64

	// forceConflict makes the next insert fail as a uniqueness violation,
	// materializing the row as a concurrent writer would have.
	forceConflict bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{guilds: map[string]*models.Guild{}}
}

func (s *fakeStore) CreateGuild(_ context.Context, guild models.Guild) (*models.Guild, error) {
	s.inserts++

	if s.forceConflict {
		s.forceConflict = false
		won := guild
		s.nextID++
		won.ID = s.nextID
		won.Created = time.Now().UTC()
		won.Updated = won.Created
		s.guilds[guild.GuildID] = &won
		return nil, errutil.Wrap(database.ErrConflict)
	}

	if _, ok := s.guilds[guild.GuildID]; ok {
		return nil, errutil.Wrap(database.ErrConflict)
	}

	s.nextID++
	guild.ID = s.nextID
	guild.Created = time.Now().UTC()
	guild.Updated = guild.Created
	s.guilds[guild.GuildID] = &guild

	g := guild
	return &g, nil
}

func (s *fakeStore) GetGuild(_ context.Context, guildID string) (*models.Guild, error) {
	g, ok := s.guilds[guildID]
	if !ok {
		return nil, errutil.Wrap(database.ErrNotFound)
	}
	copied := *g
	return &copied, nil
}

func (s *fakeStore) UpdateGuild(_ context.Context, guildID string, updates map[string]any) error {
	g, ok := s.guilds[guildID]
	if !ok {
		return errutil.Wrap(database.ErrNotFound)
	}

	if v, ok := updates["guild_name"]; ok {
		name := v.(string)
		g.Name = &name
	}
	if v, ok := updates["is_active"]; ok {
		g.Active = v.(bool)
	}
	if v, ok := updates["settings"]; ok {
		var settings map[string]any
		if err := json.Unmarshal(v.([]byte), &settings); err != nil {
			return err
		}
		g.Settings = settings
	}
	g.Updated = g.Updated.Add(time.Millisecond)

	return nil
}

func (s *fakeStore) ListActiveGuilds(_ context.Context) ([]models.Guild, error) {
	var out []models.Guild
	for _, g := range s.guilds {
		if g.Active {
			out = append(out, *g)
		}
	}
	return out, nil
}

func testRegistry(store Store) *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)), store, nil)
}

func TestFindOrCreateIsIdempotent(t *testing.T) {
	store := newFakeStore()
	r := testRegistry(store)
	ctx := context.Background()

	first, err := r.FindOrCreate(ctx, "g1", nil, nil)
	require.NoError(t, err)
	assert.True(t, first.Active)
	assert.Equal(t, map[string]any{}, first.Settings)
	assert.Equal(t, 1, store.inserts)

	second, err := r.FindOrCreate(ctx, "g1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.inserts, "second call must not insert")
}

func TestFindOrCreateReactivatesSoftDeleted(t *testing.T) {
	store := newFakeStore()
	r := testRegistry(store)
	ctx := context.Background()

	created, err := r.FindOrCreate(ctx, "g1", nil, nil)
	require.NoError(t, err)

	deleted, err := r.SoftDelete(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, deleted.Active)

	revived, err := r.FindOrCreate(ctx, "g1", nil, nil)
	require.NoError(t, err)
	assert.True(t, revived.Active)
	assert.Equal(t, created.ID, revived.ID)
	assert.Equal(t, created.Created, revived.Created)
	assert.True(t, revived.Updated.After(created.Updated))
}

func TestFindOrCreateRecoversFromInsertRace(t *testing.T) {
	store := newFakeStore()
	store.forceConflict = true
	r := testRegistry(store)

	g, err := r.FindOrCreate(context.Background(), "g1", nil, nil)
	require.NoError(t, err, "conflict must be recovered by re-fetch, not surfaced")
	assert.Equal(t, "g1", g.GuildID)
	assert.True(t, g.Active)
	assert.Len(t, store.guilds, 1)
}

func TestUpdateUnknownGuild(t *testing.T) {
	r := testRegistry(newFakeStore())

	_, err := r.Update(context.Background(), "nope", UpdateParams{})
	assert.True(t, errors.Is(err, database.ErrNotFound))
}

func TestUpdateIsPartial(t *testing.T) {
	store := newFakeStore()
	r := testRegistry(store)
	ctx := context.Background()

	name := "old name"
	_, err := r.FindOrCreate(ctx, "g1", &name, nil)
	require.NoError(t, err)

	updated, err := r.Update(ctx, "g1", UpdateParams{Settings: map[string]any{"locale": "ja"}})
	require.NoError(t, err)

	require.NotNil(t, updated.Name)
	assert.Equal(t, "old name", *updated.Name, "unsupplied fields stay put")
	assert.Equal(t, map[string]any{"locale": "ja"}, updated.Settings)
	assert.True(t, updated.Active)
}

func TestListActive(t *testing.T) {
	store := newFakeStore()
	r := testRegistry(store)
	ctx := context.Background()

	_, err := r.FindOrCreate(ctx, "g1", nil, nil)
	require.NoError(t, err)
	_, err = r.FindOrCreate(ctx, "g2", nil, nil)
	require.NoError(t, err)
	_, err = r.SoftDelete(ctx, "g2")
	require.NoError(t, err)

	guilds, err := r.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, guilds, 1)
	assert.Equal(t, "g1", guilds[0].GuildID)
}
