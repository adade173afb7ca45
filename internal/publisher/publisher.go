package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/graxinc/errutil"
)

const (
	DefaultAPIBase = "https://discord.com/api/v10"

	requestTimeout = 10 * time.Second
	maxErrorBody   = 4096
)

// Publisher pushes the static command catalogue to the platform's per-guild
// registration endpoint. That endpoint is idempotent by command name, so
// re-publishing the same catalogue is harmless; this component relies on that
// rather than tracking what it already sent.
type Publisher struct {
	l       *slog.Logger
	client  *http.Client
	apiBase string
	appID   string
	token   string
}

func NewPublisher(l *slog.Logger, apiBase, appID, token string) *Publisher {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}

	return &Publisher{
		l:       l,
		client:  &http.Client{Timeout: requestTimeout},
		apiBase: apiBase,
		appID:   appID,
		token:   token,
	}
}

// PublishGuildCommands registers each catalogue entry with one call apiece.
// The first non-success response aborts the remaining entries; the error
// carries the platform's response body.
func (p *Publisher) PublishGuildCommands(ctx context.Context, guildID string, commands []*dg.ApplicationCommand) error {
	url := fmt.Sprintf("%s/applications/%s/guilds/%s/commands", p.apiBase, p.appID, guildID)

	for _, cmd := range commands {
		if err := p.publish(ctx, url, guildID, cmd); err != nil {
			return errutil.With(err)
		}
	}

	return nil
}

func (p *Publisher) publish(ctx context.Context, url, guildID string, cmd *dg.ApplicationCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return errutil.With(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errutil.With(err)
	}
	req.Header.Set("Authorization", "Bot "+p.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return errutil.With(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errutil.With(fmt.Errorf("registering command %q for guild %s: %s: %s", cmd.Name, guildID, resp.Status, body))
	}

	p.l.Debug("registered command", "guild", guildID, "command", cmd.Name)

	return nil
}
