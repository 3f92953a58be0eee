package book

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/haaandolo/rotom-sub000/internal/adapter"
	"github.com/haaandolo/rotom-sub000/internal/marketerr"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

// PoloniexUpdater is trivial: Poloniex's "book" channel pushes the
// complete bid/ask vectors on every message, so there is nothing to
// reconcile and no resync error is ever raised.
type PoloniexUpdater struct {
	lastID uint64
}

// InitPoloniexBook builds an empty book for inst. Poloniex has no
// standalone REST snapshot endpoint (SnapshotURL returns "" for this
// adapter); the first WS "book" message establishes the initial state via
// PoloniexUpdater.Update, so init only needs the tick size.
func InitPoloniexBook(ctx context.Context, client *resty.Client, inst types.Instrument) (*OrderBook, *PoloniexUpdater, error) {
	p := &adapter.Poloniex{}
	var info adapter.PoloniexTickerInfo
	resp, err := client.R().SetContext(ctx).SetResult(&info).Get(p.TickerInfoURL(inst))
	if err != nil {
		return nil, nil, err
	}
	if resp.IsError() {
		return nil, nil, &marketerr.TickSizeError{Base: inst.Base, Quote: inst.Quote, Exchange: "poloniex"}
	}
	tickSize := adapter.TickSizeFromPriceScale(info.PriceScale)
	if tickSize <= 0 {
		tickSize = 0.00000001
	}
	return NewOrderBook(tickSize), &PoloniexUpdater{}, nil
}

// Update replaces the book wholesale from frame and returns the resulting
// snapshot. Frames older than the last applied one (by exchange id) are
// dropped, matching the idempotence requirement for replayed updates.
func (u *PoloniexUpdater) Update(b *OrderBook, frame adapter.PoloniexBookFrame) (types.BookData, bool) {
	if frame.ID != 0 && frame.ID <= u.lastID {
		return types.BookData{}, false
	}
	bids := adapter.ParsePoloniexLevels(frame.Bids)
	asks := adapter.ParsePoloniexLevels(frame.Asks)
	b.ReplaceAll(bids, asks, frame.ID, time.Now())
	u.lastID = frame.ID

	outBids, outAsks := b.Snapshot()
	return types.BookData{Bids: outBids, Asks: outAsks, LastSequence: frame.ID}, true
}
