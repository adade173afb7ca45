package commands

import (
	"context"

	dg "github.com/bwmarrin/discordgo"

	"github.com/UtakataKyosui/serenade/internal/handlers"
)

type Ping struct{}

func (p *Ping) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "ping",
		Type:        dg.ChatApplicationCommand,
		Description: "Replies with Pong!",
	}
}

func (p *Ping) Handle(ctx context.Context, dep handlers.Dependencies) (*dg.InteractionResponseData, error) {
	return &dg.InteractionResponseData{Content: "Pong!"}, nil
}
