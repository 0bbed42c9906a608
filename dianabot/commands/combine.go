package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/dianabotdeep/dianabot/dianabot"
	"github.com/dianabotdeep/dianabot/dianabot/services"
	"github.com/dianabotdeep/dianabot/dianabot/utils"
)

var Combine = discord.SlashCommandCreate{
	Name:        "combine",
	Description: "Combine lore pieces to unlock something new",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:         "first",
			Description:  "First lore piece",
			Required:     true,
			Autocomplete: true,
		},
		discord.ApplicationCommandOptionString{
			Name:         "second",
			Description:  "Second lore piece",
			Required:     true,
			Autocomplete: true,
		},
		discord.ApplicationCommandOptionString{
			Name:         "third",
			Description:  "Third lore piece",
			Autocomplete: true,
		},
		discord.ApplicationCommandOptionString{
			Name:         "fourth",
			Description:  "Fourth lore piece",
			Autocomplete: true,
		},
		discord.ApplicationCommandOptionString{
			Name:         "fifth",
			Description:  "Fifth lore piece",
			Autocomplete: true,
		},
	},
}

func CombineHandler(b *dianabot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		var codes []string
		for _, opt := range []string{"first", "second", "third", "fourth", "fifth"} {
			if value, ok := data.OptString(opt); ok {
				codes = append(codes, value)
			}
		}

		result, err := b.CombinationResolver.AttemptCombination(ctx, e.User().ID.String(), codes)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrItemNotOwned):
				return utils.EH.CreateErrorEmbed(e, "You don't own all of those pieces yet.")
			case errors.Is(err, services.ErrNotFound):
				return utils.EH.CreateErrorEmbed(e, "One of those codes doesn't match any lore piece.")
			default:
				return utils.EH.CreateErrorEmbed(e, "Failed to combine. Please try again later.")
			}
		}

		if !result.Matched {
			return utils.EH.CreateInfoEmbed(e, "Nothing happened... maybe a different combination?")
		}

		title := result.RewardCode
		content := ""
		if result.Reward != nil {
			title = result.Reward.Title
			content = result.Reward.Content
		}

		if !result.NewlyGranted {
			return utils.EH.CreateInfoEmbed(e, fmt.Sprintf("You already unlocked **%s**.", title))
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "🔓 " + title,
				Description: content,
				Color:       utils.LoreColor,
			}},
		})
	}
}

// CombineAutocompleteHandler suggests owned lore codes, fuzzy-matched against
// what the user has typed so far.
func CombineAutocompleteHandler(b *dianabot.Bot) handler.AutocompleteHandler {
	return func(e *handler.AutocompleteEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		focused := e.Data.Focused()

		query := ""
		if focused.Value != nil {
			var s string
			if err := json.Unmarshal(focused.Value, &s); err != nil {
				return e.AutocompleteResult([]discord.AutocompleteChoice{})
			}
			query = strings.TrimSpace(s)
		}

		matches, err := b.LoreSearch.SearchOwned(ctx, e.User().ID.String(), query, 25)
		if err != nil {
			return e.AutocompleteResult([]discord.AutocompleteChoice{})
		}

		choices := make([]discord.AutocompleteChoice, 0, len(matches))
		for _, item := range matches {
			label := item.CodeName
			if item.Piece != nil && item.Piece.Title != "" {
				label = fmt.Sprintf("%s (%s)", item.Piece.Title, item.CodeName)
			}
			choices = append(choices, discord.AutocompleteChoiceString{
				Name:  label,
				Value: item.CodeName,
			})
		}
		return e.AutocompleteResult(choices)
	}
}
