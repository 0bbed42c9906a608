package models

import (
	"time"

	"github.com/uptrace/bun"
)

type LorePiece struct {
	bun.BaseModel `bun:"table:lore_pieces,alias:lp"`

	ID          int64     `bun:"id,pk,autoincrement"`
	CodeName    string    `bun:"code_name,notnull,unique"`
	Title       string    `bun:"title,notnull"`
	Content     string    `bun:"content,notnull"`
	PieceType   string    `bun:"piece_type,notnull"` // diary, memory, artifact, letter
	Chapter     string    `bun:"chapter"`
	MediaKey    string    `bun:"media_key"`
	IsHidden    bool      `bun:"is_hidden,notnull,default:false"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

const (
	PieceTypeDiary    = "diary"
	PieceTypeMemory   = "memory"
	PieceTypeArtifact = "artifact"
	PieceTypeLetter   = "letter"
)

// UserLorePiece is set membership: one row per (user, code). Granting twice
// must not create a second row.
type UserLorePiece struct {
	bun.BaseModel `bun:"table:user_lore_pieces,alias:ulp"`

	UserID     string    `bun:"user_id,pk"`
	CodeName   string    `bun:"code_name,pk"`
	Source     string    `bun:"source,notnull"` // mission, combination, grant
	ObtainedAt time.Time `bun:"obtained_at,notnull"`

	// Relations
	Piece *LorePiece `bun:"rel:has-one,join:code_name=code_name"`
}

const (
	UnlockSourceMission     = "mission"
	UnlockSourceCombination = "combination"
	UnlockSourceGrant       = "grant"
)
