package discord

import (
	"cmp"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"
)

// hashCommand creates a deterministic hash for an ApplicationCommand (including options)
func hashCommand(cmd *discordgo.ApplicationCommand) string {
	data, _ := json.Marshal(normalizeForHash(cmd))
	return fmt.Sprintf("%x", sha1.Sum(data))
}

// normalizeForHash strips runtime-only fields (IDs, versions) and sorts options
func normalizeForHash(cmd *discordgo.ApplicationCommand) map[string]any {
	obj := map[string]any{
		"name":        cmd.Name,
		"description": cmd.Description,
		"type":        cmd.Type,
	}
	if cmd.DefaultMemberPermissions != nil {
		obj["default_member_permissions"] = *cmd.DefaultMemberPermissions
	}
	if len(cmd.Options) > 0 {
		obj["options"] = normalizeOptions(cmd.Options)
	}
	return obj
}

type normalizedOption struct {
	Name        string                                 `json:"name"`
	Description string                                 `json:"description"`
	Type        discordgo.ApplicationCommandOptionType `json:"type"`
	Required    bool                                   `json:"required"`
	MinValue    *float64                               `json:"min_value,omitempty"`
	Choices     []map[string]any                       `json:"choices,omitempty"`
	Options     []normalizedOption                     `json:"options,omitempty"`
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []normalizedOption {
	normalized := make([]normalizedOption, len(opts))
	for i, o := range opts {
		entry := normalizedOption{
			Name:        o.Name,
			Description: o.Description,
			Type:        o.Type,
			Required:    o.Required,
			MinValue:    o.MinValue,
		}
		for _, c := range o.Choices {
			entry.Choices = append(entry.Choices, map[string]any{"name": c.Name, "value": c.Value})
		}
		if len(o.Options) > 0 {
			entry.Options = normalizeOptions(o.Options)
		}
		normalized[i] = entry
	}

	slices.SortFunc(normalized, func(a, b normalizedOption) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return normalized
}
