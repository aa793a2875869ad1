package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/vadiminshakov/portfel/internal/domain"
	"github.com/vadiminshakov/portfel/internal/services/aggregator"
)

const defaultEditInterval = 30 * time.Second

// Notifier keeps one summary message per chat up to date: the first
// change sends the message, later changes edit it in place. Edits are
// throttled to stay inside Telegram rate limits.
type Notifier struct {
	bot    *tb.Bot
	chatID tb.ChatID
	store  *aggregator.Store
	every  time.Duration
	logger *zap.Logger

	message *tb.Message
}

func NewNotifier(token string, chatID int64, store *aggregator.Store, logger *zap.Logger) (*Notifier, error) {
	bot, err := tb.NewBot(tb.Settings{Token: token})
	if err != nil {
		return nil, err
	}
	return &Notifier{
		bot:    bot,
		chatID: tb.ChatID(chatID),
		store:  store,
		every:  defaultEditInterval,
		logger: logger,
	}, nil
}

// Run updates the summary message on change notifications until ctx is
// cancelled. Send/edit failures are logged and retried on the next
// change.
func (n *Notifier) Run(ctx context.Context) error {
	ch := n.store.Subscribe()
	defer n.store.Unsubscribe(ch)

	var lastEdit time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			if time.Since(lastEdit) < n.every {
				continue
			}
			if err := n.publish(); err != nil {
				n.logger.Warn("telegram update failed", zap.Error(err))
				continue
			}
			lastEdit = time.Now()
		}
	}
}

func (n *Notifier) publish() error {
	text := n.summary()
	if n.message == nil {
		msg, err := n.bot.Send(n.chatID, text, tb.ModeMarkdown)
		if err != nil {
			return err
		}
		n.message = msg
		return nil
	}

	msg, err := n.bot.Edit(n.message, text, tb.ModeMarkdown)
	if err != nil {
		// the message may have been deleted; resend next time
		n.message = nil
		return err
	}
	n.message = msg
	return nil
}

func (n *Notifier) summary() string {
	snapshot := n.store.Snapshot()

	var b strings.Builder
	for _, name := range sortedNames(snapshot) {
		record := snapshot[name]
		fmt.Fprintf(&b, "*%s* (%s): %s\n", record.Name, record.ValuationCurrency, record.Total.StringFixed(2))
		for _, asset := range record.Balances.Sorted() {
			fmt.Fprintf(&b, "  %s: %s (%s)\n", asset.Symbol, asset.Amount.StringFixed(8), asset.BaseValue.StringFixed(2))
		}
		if record.SpotBalance != nil {
			fmt.Fprintf(&b, "  spot: %s\n", record.SpotBalance.StringFixed(2))
		}
		if record.EarnBalance != nil {
			fmt.Fprintf(&b, "  earn: %s\n", record.EarnBalance.StringFixed(2))
		}
	}
	fmt.Fprintf(&b, "_updated %s_", time.Now().UTC().Format(time.RFC3339))
	return b.String()
}

func sortedNames(snapshot map[string]domain.GroupRecord) []string {
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
