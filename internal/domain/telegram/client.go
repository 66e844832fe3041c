package telegram

import "gopkg.in/telebot.v3"

// Client sends run reports over a Telegram bot.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
