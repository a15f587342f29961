// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/putscout/internal/models"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return newClient(bot, chatIDInt, maxRetries, retryDelayBase), nil
}

func newClient(bot *tgbotapi.BotAPI, chatID int64, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a run failure notification.
func (c *Client) SendError(runErr error) error {
	text := fmt.Sprintf("⚠️ *Scan failed*\n`%s`", escapeMarkdownV2(runErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendCandidates sends the best topN ranked options. Nothing is sent for an
// empty list.
func (c *Client) SendCandidates(options []models.Option, topN int) error {
	if len(options) == 0 {
		return nil
	}
	return c.sendMarkdownV2(formatCandidates(options, topN))
}

// SendOrders sends a summary of placements made by the run.
func (c *Client) SendOrders(placements []models.Placement) error {
	if len(placements) == 0 {
		return nil
	}
	return c.sendMarkdownV2(formatOrders(placements))
}

func formatCandidates(options []models.Option, topN int) string {
	if topN <= 0 || topN > len(options) {
		topN = len(options)
	}

	var b strings.Builder
	b.WriteString("📊 *Options of interest*\n\n")
	for _, o := range options[:topN] {
		var profit, profitPct, margin float64
		if o.Profit != nil {
			profit, profitPct = o.Profit.Value, o.Profit.Percentage
		}
		if o.Margin != nil {
			margin = o.Margin.Total
		}

		fmt.Fprintf(&b, "%s *%s* %s\n",
			escapeMarkdownV2(fmt.Sprintf("%d.", o.SequenceID)),
			escapeMarkdownV2(o.TradingSymbol),
			escapeMarkdownV2(o.Expiry),
		)
		fmt.Fprintf(&b, "   %s\n", escapeMarkdownV2(fmt.Sprintf(
			"dip %.2f%% | profit %.2f (%.2f%%) | margin %.0f", o.PercentageDip, profit, profitPct, margin)))
	}
	if topN < len(options) {
		fmt.Fprintf(&b, "\n%s\n", escapeMarkdownV2(fmt.Sprintf("+%d more", len(options)-topN)))
	}
	return b.String()
}

func formatOrders(placements []models.Placement) string {
	var b strings.Builder
	b.WriteString("🧾 *Orders placed*\n\n")
	for _, p := range placements {
		fmt.Fprintf(&b, "%s *%s* %s\n",
			escapeMarkdownV2("["+p.Kind+"]"),
			escapeMarkdownV2(p.TradingSymbol),
			escapeMarkdownV2(fmt.Sprintf("%s %d @ %.2f (id %s)", p.TransactionType, p.Quantity, p.Price, p.ID)),
		)
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
