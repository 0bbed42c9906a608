package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/dianabotdeep/dianabot/dianabot"
	"github.com/dianabotdeep/dianabot/dianabot/services"
	"github.com/dianabotdeep/dianabot/dianabot/utils"
)

var Balance = discord.SlashCommandCreate{
	Name:        "balance",
	Description: "Show your points and level",
}

func BalanceHandler(b *dianabot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		points, level, err := b.PointsService.Balance(ctx, e.User().ID.String())
		if err != nil {
			return utils.EH.CreateErrorEmbed(e, "Failed to fetch your balance. Please try again later.")
		}

		next := services.PointsForLevel(level + 1)
		current := services.PointsForLevel(level)
		var bar string
		if next > current {
			bar = utils.ProgressBar(float64(points-current)/float64(next-current), 12)
		} else {
			bar = utils.ProgressBar(1, 12)
		}

		embed := discord.NewEmbedBuilder().
			SetTitle("Your Progress").
			SetDescription(fmt.Sprintf("**%d** points, level **%d**\n`%s` %d/%d to next level",
				points, level, bar, points-current, next-current)).
			SetColor(utils.InfoColor).
			Build()

		return e.CreateMessage(discord.MessageCreate{Embeds: []discord.Embed{embed}})
	}
}
