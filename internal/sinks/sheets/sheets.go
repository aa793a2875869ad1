package sheets

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/vadiminshakov/portfel/internal/services/aggregator"
)

const defaultSchedule = "@hourly"

// Logger appends one row per group to a spreadsheet on a cron
// schedule. Append failures are logged and the next tick retries; the
// sheet is a log, not a source of truth.
type Logger struct {
	service       *sheets.Service
	spreadsheetID string
	sheetRange    string
	schedule      string
	store         *aggregator.Store
	logger        *zap.Logger
}

func NewLogger(ctx context.Context, credentialsFile, spreadsheetID, sheetRange, schedule string, store *aggregator.Store, logger *zap.Logger) (*Logger, error) {
	if credentialsFile == "" {
		return nil, errors.New("sheets: credentials file is not set")
	}
	service, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, errors.Wrap(err, "init sheets service")
	}
	if sheetRange == "" {
		sheetRange = "Balances!A:F"
	}
	if schedule == "" {
		schedule = defaultSchedule
	}
	return &Logger{
		service:       service,
		spreadsheetID: spreadsheetID,
		sheetRange:    sheetRange,
		schedule:      schedule,
		store:         store,
		logger:        logger,
	}, nil
}

// Run starts the schedule and blocks until ctx is cancelled.
func (l *Logger) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(l.schedule, func() { l.append(ctx) }); err != nil {
		return errors.Wrapf(err, "invalid sheets schedule %q", l.schedule)
	}
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}

func (l *Logger) append(ctx context.Context) {
	now := time.Now().UTC().Format(time.RFC3339)
	values := make([][]interface{}, 0)
	for name, record := range l.store.Snapshot() {
		row := []interface{}{now, name, record.ValuationCurrency, record.Total.InexactFloat64()}
		if record.SpotBalance != nil {
			row = append(row, record.SpotBalance.InexactFloat64())
		} else {
			row = append(row, "")
		}
		if record.EarnBalance != nil {
			row = append(row, record.EarnBalance.InexactFloat64())
		} else {
			row = append(row, "")
		}
		values = append(values, row)
	}
	if len(values) == 0 {
		return
	}

	_, err := l.service.Spreadsheets.Values.
		Append(l.spreadsheetID, l.sheetRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		l.logger.Warn("sheets append failed", zap.Error(err))
		return
	}
	l.logger.Info("balances logged to spreadsheet", zap.Int("rows", len(values)))
}
