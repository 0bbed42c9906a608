package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"

	"github.com/dianabotdeep/dianabot/dianabot"
	"github.com/dianabotdeep/dianabot/dianabot/database/models"
	"github.com/dianabotdeep/dianabot/dianabot/services"
)

// ReactionHandler counts reactions toward reaction missions and feeds the
// reaction event into the dispatcher for emoji-bound scenes.
func ReactionHandler(b *dianabot.Bot) bot.EventListener {
	return bot.NewListenerFunc(func(e *events.GuildMessageReactionAdd) {
		if e.Member.User.Bot {
			return
		}
		userID := e.UserID.String()

		emoji := ""
		if e.Emoji.Name != nil {
			emoji = *e.Emoji.Name
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if _, err := b.MissionTracker.RecordProgressForKind(ctx, userID, models.MissionKindReaction, services.Increment(1)); err != nil {
			slog.Error("Failed to record reaction progress",
				slog.String("user_id", userID),
				slog.Any("error", err))
		}

		if err := b.Dispatcher.Process(ctx, services.NewReactionEvent(userID, emoji)); err != nil {
			slog.Error("Failed to process reaction event",
				slog.String("user_id", userID),
				slog.String("emoji", emoji),
				slog.Any("error", err))
		}
	})
}
