package commands

import (
	"context"

	dg "github.com/bwmarrin/discordgo"

	"github.com/UtakataKyosui/serenade/internal/handlers"
)

type Hello struct{}

func (h *Hello) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "hello",
		Type:        dg.ChatApplicationCommand,
		Description: "Replies with Hello, World!",
	}
}

func (h *Hello) Handle(ctx context.Context, dep handlers.Dependencies) (*dg.InteractionResponseData, error) {
	return &dg.InteractionResponseData{Content: "Hello, World!"}, nil
}
