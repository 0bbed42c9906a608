package commands

import (
	"github.com/disgoorg/disgo/discord"
)

var Commands = []discord.ApplicationCommandCreate{
	Version,
	Daily,
	Balance,
	Missions,
	Backpack,
	Hints,
	Combine,
	Bond,
}
