package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/dianabotdeep/dianabot/dianabot"
	"github.com/dianabotdeep/dianabot/dianabot/services"
	"github.com/dianabotdeep/dianabot/dianabot/utils"
)

var Daily = discord.SlashCommandCreate{
	Name:        "daily",
	Description: "Claim your daily reward!",
}

func DailyHandler(b *dianabot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		result, err := b.DailyService.Claim(ctx, e.User().ID.String())
		if err != nil {
			if errors.Is(err, services.ErrAlreadyCompleted) {
				remaining := time.Until(result.NextClaim).Round(time.Minute)
				return utils.EH.CreateErrorEmbed(e, fmt.Sprintf("You already claimed today. Come back in %s.", remaining))
			}
			return utils.EH.CreateErrorEmbed(e, "Failed to claim daily reward. Please try again later.")
		}

		description := fmt.Sprintf("You claimed **%d** points!\nCurrent streak: **%d** day(s)", result.Reward, result.Streak)
		if result.Points != nil && result.Points.LeveledUp() {
			description += fmt.Sprintf("\nYou reached level **%d**!", result.Points.NewLevel)
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "Daily Reward Claimed!",
				Description: description,
				Color:       utils.SuccessColor,
			}},
		})
	}
}
