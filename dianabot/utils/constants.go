package utils

// Embed colors
const (
	SuccessColor = 0x57f287
	ErrorColor   = 0xed4245
	WarningColor = 0xfee75c
	InfoColor    = 0x5865f2
	SceneColor   = 0x2b2d31
	LoreColor    = 0xeb459e
)
