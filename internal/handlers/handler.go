package handlers

import (
	"context"
	"log/slog"

	dg "github.com/bwmarrin/discordgo"

	md "github.com/UtakataKyosui/serenade/internal/models"
)

type Dependencies struct {
	Logger      *slog.Logger
	Guild       *md.Guild
	Interaction *dg.Interaction
	Options     map[string]*dg.ApplicationCommandInteractionDataOption
}

// Handler is one slash command: its catalogue entry plus the response it
// produces when invoked.
type Handler interface {
	Metadata() dg.ApplicationCommand
	Handle(context.Context, Dependencies) (*dg.InteractionResponseData, error)
}

// Fallback is what unknown commands, components, autocompletes, and modal
// submissions get until they grow real behavior.
func Fallback() *dg.InteractionResponseData {
	return &dg.InteractionResponseData{Content: "Unknown command"}
}
