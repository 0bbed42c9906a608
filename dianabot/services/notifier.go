package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"

	"github.com/dianabotdeep/dianabot/dianabot/database/models"
)

// Notifier delivers fire-and-forget progress notifications. Failures are the
// notifier's problem to log; callers never see them.
type Notifier interface {
	NotifyMissionComplete(ctx context.Context, userID string, def *models.MissionDefinition, unlockedItem string)
	NotifyUnlock(ctx context.Context, userID string, piece *models.LorePiece)
}

type DiscordNotifier struct {
	client bot.Client
	log    *slog.Logger
}

func NewDiscordNotifier(client bot.Client, log *slog.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		client: client,
		log:    log.With(slog.String("service", "notifier")),
	}
}

func (n *DiscordNotifier) NotifyMissionComplete(ctx context.Context, userID string, def *models.MissionDefinition, unlockedItem string) {
	description := fmt.Sprintf("**%s** complete!", def.Name)
	if def.RewardPoints > 0 {
		description += fmt.Sprintf("\nYou earned **%d** points.", def.RewardPoints)
	}
	if unlockedItem != "" {
		description += fmt.Sprintf("\nSomething new is in your backpack: `%s`", unlockedItem)
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("✅ Mission Complete").
		SetDescription(description).
		SetColor(0x57f287).
		SetTimestamp(time.Now()).
		Build()

	n.sendDM(userID, embed)
}

func (n *DiscordNotifier) NotifyUnlock(ctx context.Context, userID string, piece *models.LorePiece) {
	embed := discord.NewEmbedBuilder().
		SetTitle("🔓 " + piece.Title).
		SetDescription(piece.Content).
		SetColor(0xeb459e).
		SetFooterText(piece.PieceType).
		SetTimestamp(time.Now()).
		Build()

	n.sendDM(userID, embed)
}

func (n *DiscordNotifier) sendDM(userID string, embed discord.Embed) {
	id, err := snowflake.Parse(userID)
	if err != nil {
		n.log.Warn("Invalid user ID for notification", slog.String("user_id", userID))
		return
	}

	dmChannel, err := n.client.Rest().CreateDMChannel(id)
	if err != nil {
		n.log.Error("Failed to create DM channel for notification",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return
	}

	_, err = n.client.Rest().CreateMessage(dmChannel.ID(), discord.MessageCreate{
		Embeds: []discord.Embed{embed},
	})
	if err != nil {
		n.log.Debug("Failed to send notification DM (user may have DMs disabled)",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
	}
}
