package tghtml

const (
	// MaxMessageLen is Telegram's limit for one text message, in characters
	// including markup.
	MaxMessageLen = 4096

	// MaxCaptionLen is Telegram's limit for a media caption.
	MaxCaptionLen = 1024

	// MaxAlbumItems is Telegram's limit for items in one media group.
	MaxAlbumItems = 10
)
