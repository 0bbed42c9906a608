package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         int64     `bun:"id,pk,autoincrement"`
	DiscordID  string    `bun:"discord_id,notnull,unique"`
	Username   string    `bun:"username,notnull"`
	Points     int64     `bun:"points,notnull,default:0"`
	Level      int       `bun:"level,notnull,default:1"`
	Joined     time.Time `bun:"joined,notnull"`
	LastDaily  time.Time `bun:"last_daily"`
	LastActive time.Time `bun:"last_active,notnull"`
	Streak     int       `bun:"streak,notnull,default:0"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}
