package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"

	"github.com/dianabotdeep/dianabot/dianabot"
	"github.com/dianabotdeep/dianabot/dianabot/services"
)

const (
	messageReward   = 2
	messageCooldown = time.Minute
)

// MessageHandler awards activity points for guild messages and feeds the
// resulting events into the dispatcher. A per-user cooldown keeps spam from
// turning into points.
func MessageHandler(b *dianabot.Bot) bot.EventListener {
	var mu sync.Mutex
	lastRewarded := make(map[string]time.Time)

	return bot.NewListenerFunc(func(e *events.GuildMessageCreate) {
		if e.Message.Author.Bot || e.Message.Author.System {
			return
		}
		userID := e.Message.Author.ID.String()

		mu.Lock()
		if last, ok := lastRewarded[userID]; ok && time.Since(last) < messageCooldown {
			mu.Unlock()
			return
		}
		lastRewarded[userID] = time.Now()
		mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		result, err := b.PointsService.Award(ctx, userID, messageReward)
		if err != nil {
			slog.Error("Failed to award activity points",
				slog.String("user_id", userID),
				slog.Any("error", err))
			return
		}

		if err := b.Dispatcher.Process(ctx, services.NewPointsEvent(userID, messageReward, result.NewTotal)); err != nil {
			slog.Error("Failed to process points event",
				slog.String("user_id", userID),
				slog.Any("error", err))
		}

		if result.LeveledUp() {
			if err := b.Dispatcher.Process(ctx, services.NewLevelUpEvent(userID, result.OldLevel, result.NewLevel)); err != nil {
				slog.Error("Failed to process level-up event",
					slog.String("user_id", userID),
					slog.Any("error", err))
			}
		}
	})
}
