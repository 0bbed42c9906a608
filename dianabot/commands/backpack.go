package commands

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/dianabotdeep/dianabot/dianabot"
	"github.com/dianabotdeep/dianabot/dianabot/database/models"
	"github.com/dianabotdeep/dianabot/dianabot/utils"
)

const piecesPerPage = 8

var Backpack = discord.SlashCommandCreate{
	Name:        "backpack",
	Description: "Show the lore pieces you have collected",
}

var Hints = discord.SlashCommandCreate{
	Name:        "hints",
	Description: "Show which combinations you can complete right now",
}

func BackpackHandler(b *dianabot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		owned, err := b.LoreRepository.GetOwned(ctx, e.User().ID.String())
		if err != nil {
			return utils.EH.CreateErrorEmbed(e, "Failed to fetch your backpack")
		}
		if len(owned) == 0 {
			return utils.EH.CreateInfoEmbed(e, "Your backpack is empty. Complete missions to collect lore pieces.")
		}

		totalPages := int(math.Ceil(float64(len(owned)) / float64(piecesPerPage)))

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				startIdx := page * piecesPerPage
				endIdx := min(startIdx+piecesPerPage, len(owned))

				var description strings.Builder
				for _, item := range owned[startIdx:endIdx] {
					title := item.CodeName
					pieceType := ""
					if item.Piece != nil {
						title = item.Piece.Title
						pieceType = item.Piece.PieceType
					}
					description.WriteString(fmt.Sprintf("`%s` **%s** (%s)\n", item.CodeName, title, pieceType))
				}

				embed.
					SetTitle("Backpack").
					SetDescription(description.String()).
					SetColor(utils.LoreColor).
					SetFooter(fmt.Sprintf("Page %d/%d • Total: %d", page+1, totalPages, len(owned)), "")
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}

func HintsHandler(b *dianabot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		userID := e.User().ID.String()
		owned, err := b.LoreRepository.GetOwned(ctx, userID)
		if err != nil {
			return utils.EH.CreateErrorEmbed(e, "Failed to look up combinations")
		}
		if len(owned) == 0 {
			return utils.EH.CreateInfoEmbed(e, "Nothing yet. Collect more lore pieces and try again.")
		}

		// Every owned piece is a potential anchor; collect the ready recipes
		// once each.
		seen := make(map[int64]bool)
		var ready []*models.CombinationRule
		for _, item := range owned {
			rules, err := b.CombinationResolver.FindPossibleCombinations(ctx, userID, item.CodeName)
			if err != nil {
				return utils.EH.CreateErrorEmbed(e, "Failed to look up combinations")
			}
			for _, rule := range rules {
				if seen[rule.ID] {
					continue
				}
				seen[rule.ID] = true
				ready = append(ready, rule)
			}
		}

		if len(ready) == 0 {
			return utils.EH.CreateInfoEmbed(e, "Nothing yet. Collect more lore pieces and try again.")
		}

		var description strings.Builder
		shown := min(len(ready), 10)
		for _, rule := range ready[:shown] {
			codes := make([]string, 0, len(rule.RequiredCodes))
			for code := range rule.RequiredSet() {
				codes = append(codes, code)
			}
			sort.Strings(codes)
			description.WriteString(fmt.Sprintf("`%s` ← ready to combine!\n", strings.Join(codes, "` + `")))
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "Combination Hints",
				Description: description.String(),
				Color:       utils.LoreColor,
			}},
		})
	}
}
