package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dg "github.com/bwmarrin/discordgo"

	"github.com/UtakataKyosui/serenade/internal/handlers"
	"github.com/UtakataKyosui/serenade/internal/models"
	"github.com/UtakataKyosui/serenade/internal/utils"
)

// handleInteraction dispatches one verified interaction. Pings are terminal:
// no storage, no publishing. Everything else that names a guild triggers the
// registration side effects first, then gets classified; side-effect failures
// are logged and never change the response.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var interaction dg.Interaction
	if err := json.NewDecoder(r.Body).Decode(&interaction); err != nil {
		s.l.Warn("error decoding interaction", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if interaction.Type == dg.InteractionPing {
		writeResponse(w, s.l, dg.InteractionResponse{Type: dg.InteractionResponsePong})
		return
	}

	var guild *models.Guild
	if interaction.GuildID != "" {
		guild = s.registerGuild(r.Context(), interaction.GuildID)
	}

	writeResponse(w, s.l, s.classify(r.Context(), &interaction, guild))
}

// registerGuild upserts the calling guild, then hands the catalogue publish to
// a detached task with its own deadline. The upsert always precedes the
// publish; neither outcome is allowed to block or alter the response.
func (s *Server) registerGuild(ctx context.Context, guildID string) *models.Guild {
	guild, err := s.registry.FindOrCreate(ctx, guildID, nil, nil)
	if err != nil {
		s.l.Error("error registering guild", "error", err, "guild", guildID)
	}

	s.publishes.Add(1)
	go func() {
		defer s.publishes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := s.publisher.PublishGuildCommands(ctx, guildID, s.catalogue); err != nil {
			s.l.Error("error publishing guild commands", "error", err, "guild", guildID)
			return
		}

		s.l.Info("published command catalogue", "guild", guildID, "commands", len(s.catalogue))
	}()

	return guild
}

func (s *Server) classify(ctx context.Context, i *dg.Interaction, guild *models.Guild) dg.InteractionResponse {
	switch i.Type {
	case dg.InteractionApplicationCommand:
		return s.command(ctx, i, guild)
	default:
		// Components, autocompletes, and modal submissions share the
		// unknown-command fallback until they grow real handling.
		return dg.InteractionResponse{
			Type: dg.InteractionResponseChannelMessageWithSource,
			Data: handlers.Fallback(),
		}
	}
}

func (s *Server) command(ctx context.Context, i *dg.Interaction, guild *models.Guild) dg.InteractionResponse {
	data := i.ApplicationCommandData()

	h, ok := lookup[data.Name]
	if !ok {
		return dg.InteractionResponse{
			Type: dg.InteractionResponseChannelMessageWithSource,
			Data: handlers.Fallback(),
		}
	}

	s.l.Info("command issued", "guild", i.GuildID, "called", utils.FormatInteraction(i))

	respData, err := h.Handle(ctx, handlers.Dependencies{
		Logger:      s.l,
		Guild:       guild,
		Interaction: i,
		Options:     utils.MapOptions(i),
	})
	if err != nil {
		s.l.Error("error handling command", "error", err, "command", data.Name, "guild", i.GuildID)
		return dg.InteractionResponse{
			Type: dg.InteractionResponseChannelMessageWithSource,
			Data: &dg.InteractionResponseData{Content: "Something went wrong"},
		}
	}

	return dg.InteractionResponse{
		Type: dg.InteractionResponseChannelMessageWithSource,
		Data: respData,
	}
}

func writeResponse(w http.ResponseWriter, l *slog.Logger, resp dg.InteractionResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		l.Error("error writing interaction response", "error", err)
	}
}
