package commands

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/dianabotdeep/dianabot/dianabot"
	"github.com/dianabotdeep/dianabot/dianabot/utils"
)

const missionsPerPage = 6

var Missions = discord.SlashCommandCreate{
	Name:        "missions",
	Description: "Show your missions and progress",
}

func MissionsHandler(b *dianabot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		statuses, err := b.MissionTracker.Overview(ctx, e.User().ID.String())
		if err != nil {
			return utils.EH.CreateErrorEmbed(e, "Failed to fetch missions")
		}
		if len(statuses) == 0 {
			return utils.EH.CreateInfoEmbed(e, "No missions are available right now.")
		}

		totalPages := int(math.Ceil(float64(len(statuses)) / float64(missionsPerPage)))

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				startIdx := page * missionsPerPage
				endIdx := min(startIdx+missionsPerPage, len(statuses))

				var description strings.Builder
				for _, status := range statuses[startIdx:endIdx] {
					def := status.Definition

					progress := 0
					if status.Progress != nil {
						progress = status.Progress.ProgressValue
					}

					marker := "🔸"
					if status.Completed {
						marker = "✅"
						progress = def.TargetValue
					}

					bar := utils.ProgressBar(float64(progress)/float64(def.TargetValue), 10)
					description.WriteString(fmt.Sprintf("%s **%s** (%s)\n%s\n`%s` %d/%d",
						marker, def.Name, def.Kind, def.Description, bar, progress, def.TargetValue))
					if def.RewardPoints > 0 {
						description.WriteString(fmt.Sprintf(" · %d pts", def.RewardPoints))
					}
					description.WriteString("\n\n")
				}

				embed.
					SetTitle("Missions").
					SetDescription(description.String()).
					SetColor(utils.InfoColor).
					SetFooter(fmt.Sprintf("Page %d/%d", page+1, totalPages), "")
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}
