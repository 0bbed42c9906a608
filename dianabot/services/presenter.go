package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/dianabotdeep/dianabot/dianabot/database/models"
)

const (
	mediaCacheSize   = 512
	mediaCacheExpiry = 10 * time.Minute
)

// ScenePresenter delivers a scene to a user. Implementations must treat
// delivery as best effort: the dispatcher has already committed the seen mark
// when Present runs.
type ScenePresenter interface {
	Present(ctx context.Context, userID string, scene *models.Scene) error
}

type cachedMediaURL struct {
	url       string
	timestamp time.Time
}

// DiscordScenePresenter sends scenes as embeds over DM, with the character
// name as the author line and the scene media as the image.
type DiscordScenePresenter struct {
	client bot.Client
	media  *SpacesService
	cache  *lru.Cache
	log    *slog.Logger
}

func NewDiscordScenePresenter(client bot.Client, media *SpacesService, log *slog.Logger) *DiscordScenePresenter {
	cache, _ := lru.New(mediaCacheSize)
	return &DiscordScenePresenter{
		client: client,
		media:  media,
		cache:  cache,
		log:    log.With(slog.String("service", "presenter")),
	}
}

func (p *DiscordScenePresenter) Present(ctx context.Context, userID string, scene *models.Scene) error {
	id, err := snowflake.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user ID %q: %w", userID, err)
	}

	builder := discord.NewEmbedBuilder().
		SetAuthorName(scene.Character).
		SetDescription(scene.Dialogue).
		SetColor(0x2b2d31).
		SetTimestamp(time.Now())

	if scene.Chapter != "" {
		builder.SetFooterText(scene.Chapter)
	}

	if scene.MediaKey != "" {
		url, err := p.mediaURL(ctx, scene.MediaKey)
		if err != nil {
			// A scene with broken media still gets its dialogue delivered.
			p.log.Warn("Failed to resolve scene media",
				slog.String("scene_id", scene.SceneID),
				slog.String("media_key", scene.MediaKey),
				slog.Any("error", err))
		} else if url != "" {
			builder.SetImage(url)
		}
	}

	dmChannel, err := p.client.Rest().CreateDMChannel(id)
	if err != nil {
		return fmt.Errorf("failed to create DM channel: %w", err)
	}

	_, err = p.client.Rest().CreateMessage(dmChannel.ID(), discord.MessageCreate{
		Embeds: []discord.Embed{builder.Build()},
	})
	if err != nil {
		return fmt.Errorf("failed to send scene DM: %w", err)
	}
	return nil
}

// mediaURL resolves and caches a presigned URL for the media key. The cache
// expiry stays under the presign TTL so a cached URL is always still valid.
func (p *DiscordScenePresenter) mediaURL(ctx context.Context, mediaKey string) (string, error) {
	if p.media == nil {
		return "", nil
	}

	if cached, ok := p.cache.Get(mediaKey); ok {
		if c, ok := cached.(cachedMediaURL); ok {
			if time.Since(c.timestamp) < mediaCacheExpiry {
				return c.url, nil
			}
		}
	}

	url, err := p.media.MediaURL(ctx, mediaKey)
	if err != nil {
		return "", err
	}

	p.cache.Add(mediaKey, cachedMediaURL{
		url:       url,
		timestamp: time.Now(),
	})
	return url, nil
}
