package table

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"github.com/vadiminshakov/portfel/internal/domain"
	"github.com/vadiminshakov/portfel/internal/services/aggregator"
)

const defaultRedrawInterval = 2 * time.Second

// Renderer prints one table per group to the terminal whenever the
// global snapshot changes, throttled so bursts of updates from several
// connections redraw once.
type Renderer struct {
	store    *aggregator.Store
	out      io.Writer
	interval time.Duration
	logger   *zap.Logger
}

func NewRenderer(store *aggregator.Store, out io.Writer, logger *zap.Logger) *Renderer {
	return &Renderer{
		store:    store,
		out:      out,
		interval: defaultRedrawInterval,
		logger:   logger,
	}
}

// Run redraws on change notifications until ctx is cancelled.
func (r *Renderer) Run(ctx context.Context) error {
	ch := r.store.Subscribe()
	defer r.store.Unsubscribe(ch)

	var dirty bool
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			dirty = true
		case <-ticker.C:
			if dirty {
				r.Render()
				dirty = false
			}
		}
	}
}

// Render writes the current state of every group.
func (r *Renderer) Render() {
	snapshot := r.store.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for name := range snapshot {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	for _, name := range keys {
		r.renderGroup(snapshot[name])
	}
}

func (r *Renderer) renderGroup(record domain.GroupRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("%s (%s)", record.Name, record.ValuationCurrency)
	t.AppendHeader(table.Row{"Asset", "Amount", "Value", "Type"})

	for _, asset := range record.Balances.Sorted() {
		t.AppendRow(table.Row{
			asset.Symbol,
			asset.Amount.StringFixed(8),
			asset.BaseValue.StringFixed(2),
			string(asset.Type),
		})
	}

	t.AppendFooter(table.Row{"Total", "", record.Total.StringFixed(2), ""})
	if record.SpotBalance != nil {
		t.AppendFooter(table.Row{"Spot", "", record.SpotBalance.StringFixed(2), ""})
	}
	if record.EarnBalance != nil {
		t.AppendFooter(table.Row{"Earn", "", record.EarnBalance.StringFixed(2), ""})
	}
	t.Render()
}
