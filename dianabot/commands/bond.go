package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/dianabotdeep/dianabot/dianabot"
	"github.com/dianabotdeep/dianabot/dianabot/database/models"
	"github.com/dianabotdeep/dianabot/dianabot/utils"
)

var Bond = discord.SlashCommandCreate{
	Name:        "bond",
	Description: "Show how close you and Diana have become",
}

var stageDisplay = map[string]string{
	models.StageStranger:     "Stranger",
	models.StageCurious:      "Curious",
	models.StageAcquaintance: "Acquaintance",
	models.StageTrusted:      "Trusted",
	models.StageConfidant:    "Confidant",
	models.StageIntimate:     "Intimate",
}

func BondHandler(b *dianabot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		state, err := b.TrustEngine.State(ctx, e.User().ID.String())
		if err != nil {
			return utils.EH.CreateErrorEmbed(e, "Failed to fetch your bond. Please try again later.")
		}

		stage := models.StageForTrust(state.TrustValue)
		display := stageDisplay[stage]
		if display == "" {
			display = stage
		}

		bar := utils.ProgressBar(state.TrustValue, 14)
		embed := discord.NewEmbedBuilder().
			SetTitle("Your Bond with Diana").
			SetDescription(fmt.Sprintf("**%s**\n`%s` %.0f%%\n%d interactions so far",
				display, bar, state.TrustValue*100, state.TotalInteractions)).
			SetColor(utils.SceneColor).
			Build()

		return e.CreateMessage(discord.MessageCreate{Embeds: []discord.Embed{embed}})
	}
}
