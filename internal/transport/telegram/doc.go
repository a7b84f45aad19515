// Package telegram is a Telegram bot producer: people post to the screens by
// messaging the bot.
//
// Commands:
//
//	/post [@variant] [#notext] <text>   queue a text message
//	(photo with optional caption)       queue an image; the caption is the overlay text
//	/variants                           list display durations
//	/help                               usage
//
// "@variant" picks a display duration by label; "#notext" hides the caption over an
// image. Long polling runs under the supervisor restart loop.
package telegram
