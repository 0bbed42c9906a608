package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/dianabotdeep/dianabot/dianabot"
	"github.com/dianabotdeep/dianabot/dianabot/services"
)

// PollComponentHandler resolves poll answer buttons. Custom IDs follow
// /poll/{pollID}/{optionID}; each press feeds the dispatcher so scenes bound
// to the option, or to the poll as a whole, can fire.
func PollComponentHandler(b *dianabot.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		data, ok := e.Data.(discord.ButtonInteractionData)
		if !ok {
			return nil
		}

		parts := strings.Split(strings.Trim(data.CustomID(), "/"), "/")
		if len(parts) != 3 || parts[0] != "poll" {
			return nil
		}
		pollID, optionID := parts[1], parts[2]
		userID := e.User().ID.String()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := b.Dispatcher.Process(ctx, services.NewPollAnsweredEvent(userID, pollID, optionID)); err != nil {
			slog.Error("Failed to process poll answer",
				slog.String("user_id", userID),
				slog.String("poll_id", pollID),
				slog.String("option_id", optionID),
				slog.Any("error", err))
		}

		return e.CreateMessage(discord.MessageCreate{
			Content: "Answer recorded.",
			Flags:   discord.MessageFlagEphemeral,
		})
	}
}
