// Package notification provides implementations for various notification services
package notification

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	trailingstop "github.com/tesius/trailing-stop-visualizer"
	"github.com/tesius/trailing-stop-visualizer/pkg/core"
	"github.com/tesius/trailing-stop-visualizer/pkg/engine"
	tb "gopkg.in/tucnak/telebot.v2"
)

// Command pattern for the analyze handler. Everything after the ticker is
// optional: interval, trade type code, entry price and entry date.
var analyzeRegexp = regexp.MustCompile(
	`/analyze\s+(?P<ticker>[\w.]+)` +
		`(?:\s+(?P<interval>1d|1wk|1mo)\b)?` +
		`(?:\s+(?P<trade_type>[A-Za-z])\b)?` +
		`(?:\s+(?P<entry_price>\d+(?:\.\d+)?)\b)?` +
		`(?:\s+(?P<entry_date>\d{4}-\d{2}-\d{2})\b)?`,
)

// TelegramSettings carries the bot token and the chat IDs allowed to talk
// to the bot. Notifications go to every listed user.
type TelegramSettings struct {
	Token string
	Users []int64
}

// telegram implements the core.NotifierWithStart interface
type telegram struct {
	settings    TelegramSettings
	analyzer    *trailingstop.Analyzer
	defaultMenu *tb.ReplyMarkup
	client      *tb.Bot
}

// NewTelegram creates and initializes a new Telegram service
func NewTelegram(analyzer *trailingstop.Analyzer, settings TelegramSettings) (core.NotifierWithStart, error) {
	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	poller := &tb.LongPoller{Timeout: 10 * time.Second}
	userMiddleware := createAuthMiddleware(poller, settings)

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Token,
		Poller:    userMiddleware,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	setupKeyboard(menu)

	if err := setupCommands(client); err != nil {
		return nil, fmt.Errorf("failed to set telegram commands: %w", err)
	}

	bot := &telegram{
		settings:    settings,
		analyzer:    analyzer,
		defaultMenu: menu,
		client:      client,
	}

	registerHandlers(client, bot)

	return bot, nil
}

// createAuthMiddleware builds a poller that drops updates from unknown users
func createAuthMiddleware(poller *tb.LongPoller, settings TelegramSettings) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			log.Error("notification/telegram: no message, invalid or null update")
			return false
		}

		if !slices.Contains(settings.Users, u.Message.Sender.ID) {
			log.Errorf("notification/telegram: unauthorized user %d", u.Message.Sender.ID)
			return false
		}

		return true
	})
}

// setupKeyboard configures the default reply keyboard
func setupKeyboard(menu *tb.ReplyMarkup) {
	var (
		analyzeBtn = menu.Text("/analyze")
		typesBtn   = menu.Text("/types")
		helpBtn    = menu.Text("/help")
	)

	menu.Reply(
		menu.Row(analyzeBtn, typesBtn),
		menu.Row(helpBtn),
	)
}

// setupCommands registers the command list shown by the Telegram client
func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "/analyze", Description: "Run a trailing stop analysis, e.g. /analyze AAPL 1d B 187.5 2025-01-10"},
		{Text: "/types", Description: "List the trade type presets"},
		{Text: "/help", Description: "Display help instructions"},
	})
}

// registerHandlers wires the command handlers
func registerHandlers(client *tb.Bot, bot *telegram) {
	handlers := map[string]interface{}{
		"/analyze": bot.AnalyzeHandle,
		"/types":   bot.TypesHandle,
		"/help":    bot.HelpHandle,
	}

	for command, handler := range handlers {
		client.Handle(command, handler)
	}
}

// Start begins polling for updates and greets the configured users
func (t *telegram) Start() {
	go t.client.Start()

	for _, user := range t.settings.Users {
		t.sendMessageWithOptions(&tb.User{ID: user}, "Bot initialized.\nSend /analyze <ticker> to get a trailing stop report.", t.defaultMenu)
	}
}

// Notify sends a text message to every configured user
func (t *telegram) Notify(text string) {
	for _, user := range t.settings.Users {
		t.sendMessage(&tb.User{ID: user}, text)
	}
}

// OnError notifies the configured users about a failure
func (t *telegram) OnError(err error) {
	title := "🛑 ERROR"

	var insufficient *engine.InsufficientDataError
	if errors.As(err, &insufficient) {
		t.Notify(fmt.Sprintf("%s\nNot enough history: have %d bars, need %d", title, insufficient.Have, insufficient.Need))
		return
	}

	t.Notify(fmt.Sprintf("%s\n%s", title, err))
}

// AnalyzeHandle parses an analyze command, runs the analysis and replies
// with the text summary
func (t *telegram) AnalyzeHandle(m *tb.Message) {
	match := analyzeRegexp.FindStringSubmatch(m.Text)
	if len(match) == 0 {
		t.sendMessage(m.Sender, "Invalid command.\nExamples of usage:\n`/analyze AAPL`\n`/analyze AAPL 1wk`\n`/analyze AAPL 1d B 187.5 2025-01-10`")
		return
	}

	command := extractCommandParams(analyzeRegexp, match)

	req := trailingstop.Request{
		Ticker:    command["ticker"],
		Interval:  command["interval"],
		TradeType: strings.ToUpper(command["trade_type"]),
		EntryDate: command["entry_date"],
	}

	if raw := command["entry_price"]; raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			t.sendMessage(m.Sender, fmt.Sprintf("Invalid entry price %q", raw))
			return
		}
		req.EntryPrice = price
	}

	analysis, err := t.analyzer.Analyze(context.Background(), req)
	if err != nil {
		t.sendMessage(m.Sender, fmt.Sprintf("Analysis failed: %s", err))
		return
	}

	t.sendMessage(m.Sender, fmt.Sprintf("```\n%s\n```", analysis.Summary()))
}

// TypesHandle lists the built in trade type presets
func (t *telegram) TypesHandle(m *tb.Message) {
	var sb strings.Builder
	sb.WriteString("*TRADE TYPES*\n")

	for _, preset := range engine.TradeTypes() {
		fmt.Fprintf(&sb, "\n`%s` %s\nATR period %d, stop multiplier %.1f\ntargets ", preset.Code, preset.Name, preset.Period, preset.Multiplier)
		for i, mult := range preset.TargetMultiples {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%.1f", mult)
		}
		sb.WriteString(" ATR above entry\n")
	}

	t.sendMessage(m.Sender, sb.String())
}

// HelpHandle replies with the registered command list
func (t *telegram) HelpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		log.WithError(err).Error("notification/telegram: failed to get commands")
		return
	}

	lines := make([]string, 0, len(commands))
	for _, command := range commands {
		lines = append(lines, fmt.Sprintf("%s - %s", command.Text, command.Description))
	}

	t.sendMessage(m.Sender, strings.Join(lines, "\n"))
}

func (t *telegram) sendMessage(to tb.Recipient, text string) {
	if _, err := t.client.Send(to, text); err != nil {
		log.WithError(err).Error("notification/telegram: failed to send message")
	}
}

func (t *telegram) sendMessageWithOptions(to tb.Recipient, text string, options ...interface{}) {
	if _, err := t.client.Send(to, text, options...); err != nil {
		log.WithError(err).Error("notification/telegram: failed to send message")
	}
}

// extractCommandParams maps named capture groups to their matched values
func extractCommandParams(regex *regexp.Regexp, match []string) map[string]string {
	command := make(map[string]string)
	for i, name := range regex.SubexpNames() {
		if i != 0 && name != "" {
			command[name] = match[i]
		}
	}
	return command
}
