package models

import (
	"encoding/json"
	"time"
)

// Guild is the one persistent aggregate: a workspace the bot has been
// installed into, keyed by the platform-assigned guild ID. Rows are
// soft-deleted by flipping Active rather than removed.
type Guild struct {
	ID       int64
	GuildID  string
	Name     *string
	OwnerID  *string
	JoinedAt time.Time
	Active   bool
	Settings map[string]any
	Created  time.Time
	Updated  time.Time
}

func (g Guild) Map() map[string]any {
	settings := g.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	raw, _ := json.Marshal(settings)

	return map[string]any{
		"guild_id":   g.GuildID,
		"guild_name": g.Name,
		"owner_id":   g.OwnerID,
		"joined_at":  g.JoinedAt,
		"is_active":  g.Active,
		"settings":   raw,
	}
}

func (g Guild) Table() Table {
	return TableGuilds
}
