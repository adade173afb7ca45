package utils

import (
	dg "github.com/bwmarrin/discordgo"
)

const (
	maxCommandNameLength        = 32
	maxCommandDescriptionLength = 100
	maxOptionsPerCommand        = 25
)

type ValidationResult struct {
	Command     *dg.ApplicationCommand
	WasModified bool
	Errors      []string
}

// ValidateCommand clamps a catalogue entry to the platform's limits so the
// registration endpoint never rejects the whole catalogue over one field.
func ValidateCommand(cmd *dg.ApplicationCommand) ValidationResult {
	result := ValidationResult{Command: cmd}

	if len(cmd.Name) > maxCommandNameLength {
		result.Command.Name = cmd.Name[:maxCommandNameLength]
		result.WasModified = true
		result.Errors = append(result.Errors, "Command name was truncated")
	}

	if len(cmd.Description) > maxCommandDescriptionLength {
		result.Command.Description = cmd.Description[:maxCommandDescriptionLength]
		result.WasModified = true
		result.Errors = append(result.Errors, "Command description was truncated")
	}

	if len(cmd.Options) > maxOptionsPerCommand {
		result.Command.Options = cmd.Options[:maxOptionsPerCommand]
		result.WasModified = true
		result.Errors = append(result.Errors, "Excess options were removed")
	}

	return result
}
