package utils

import (
	"fmt"
	"strings"

	dg "github.com/bwmarrin/discordgo"
	"github.com/rs/xid"
)

func GenerateID() string {
	return xid.New().String()
}

func MapOptions(i *dg.Interaction) map[string]*dg.ApplicationCommandInteractionDataOption {
	os := i.ApplicationCommandData().Options
	om := make(map[string]*dg.ApplicationCommandInteractionDataOption, len(os))
	for _, opt := range os {
		om[opt.Name] = opt
	}
	return om
}

// FormatInteraction renders a command invocation the way a user typed it,
// for log lines.
func FormatInteraction(i *dg.Interaction) string {
	if i.Type != dg.InteractionApplicationCommand {
		return ""
	}

	data := i.ApplicationCommandData()
	parts := []string{"/" + data.Name}

	for _, opt := range data.Options {
		parts = append(parts, fmt.Sprintf("%s:%v", opt.Name, opt.Value))
	}

	return strings.Join(parts, " ")
}
