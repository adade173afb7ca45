package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/graxinc/errutil"
	"github.com/lib/pq"

	"github.com/UtakataKyosui/serenade/internal/models"
)

var (
	// ErrNotFound reports a lookup or update that matched no row.
	ErrNotFound = errors.New("database: not found")

	// ErrConflict reports an insert rejected by a uniqueness constraint.
	ErrConflict = errors.New("database: conflict")
)

const pqUniqueViolation = "23505"

type Database struct {
	l       *slog.Logger
	db      *sql.DB
	builder sq.StatementBuilderType
}

func NewDatabase(l *slog.Logger, databaseURL string) (*Database, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errutil.With(err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	cache := sq.NewStmtCache(db)
	database := Database{l: l, db: db, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(cache)}

	if err := database.Migrate(databaseURL); err != nil {
		return nil, errutil.With(err)
	}

	return &database, nil
}

func (db *Database) Close() error {
	return db.db.Close()
}

func (db *Database) Migrate(databaseURL string) error {
	m, err := migrate.New("file://migrations", databaseURL)
	if err != nil {
		return errutil.With(err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errutil.With(err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return errutil.With(err)
	}

	db.l.Info("migrations applied", "version", version, "dirty", dirty)

	return nil
}

// CreateGuild inserts a new guild row and fills in the storage-assigned
// fields on the returned copy. A duplicate guild_id surfaces as ErrConflict.
func (db *Database) CreateGuild(ctx context.Context, guild models.Guild) (*models.Guild, error) {
	data := guild.Map()
	now := time.Now().UTC()
	data["created_at"] = now
	data["updated_at"] = now

	q := db.builder.
		Insert(string(guild.Table())).
		SetMap(data).
		Suffix(`RETURNING id, created_at, updated_at`)

	if err := q.QueryRowContext(ctx).Scan(&guild.ID, &guild.Created, &guild.Updated); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, errutil.Wrap(ErrConflict)
		}
		return nil, errutil.With(err)
	}

	return &guild, nil
}

// UpdateGuild applies the given column updates to the row matching guild_id,
// refreshing updated_at. ErrNotFound when no row matched.
func (db *Database) UpdateGuild(ctx context.Context, guildID string, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()

	q := db.builder.
		Update(string(models.TableGuilds)).
		SetMap(updates).
		Where(sq.Eq{"guild_id": guildID})

	result, err := q.ExecContext(ctx)
	if err != nil {
		return errutil.With(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errutil.With(err)
	}
	if affected == 0 {
		return errutil.Wrap(ErrNotFound)
	}

	return nil
}

func (db *Database) GetGuild(ctx context.Context, guildID string) (*models.Guild, error) {
	q := db.builder.
		Select(guildColumns...).
		From(string(models.TableGuilds)).
		Where(sq.Eq{"guild_id": guildID})

	g, err := scanGuild(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errutil.Wrap(ErrNotFound)
		}
		return nil, errutil.With(err)
	}

	return g, nil
}

// ListActiveGuilds returns every active guild, most recently joined first.
func (db *Database) ListActiveGuilds(ctx context.Context) ([]models.Guild, error) {
	q := db.builder.
		Select(guildColumns...).
		From(string(models.TableGuilds)).
		Where(sq.Eq{"is_active": true}).
		OrderBy("joined_at DESC")

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, errutil.With(err)
	}
	defer rows.Close()

	var guilds []models.Guild
	for rows.Next() {
		g, err := scanGuild(rows)
		if err != nil {
			return nil, errutil.With(err)
		}
		guilds = append(guilds, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, errutil.With(err)
	}

	return guilds, nil
}

var guildColumns = []string{
	"id",
	"guild_id",
	"guild_name",
	"owner_id",
	"joined_at",
	"is_active",
	"settings",
	"created_at",
	"updated_at",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGuild(row scanner) (*models.Guild, error) {
	var g models.Guild
	var settingsRaw []byte

	if err := row.Scan(
		&g.ID,
		&g.GuildID,
		&g.Name,
		&g.OwnerID,
		&g.JoinedAt,
		&g.Active,
		&settingsRaw,
		&g.Created,
		&g.Updated,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(settingsRaw, &g.Settings); err != nil {
		return nil, errutil.With(err)
	}

	return &g, nil
}
