package book

import (
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/haaandolo/rotom-sub000/internal/adapter"
	"github.com/haaandolo/rotom-sub000/internal/marketerr"
	"github.com/haaandolo/rotom-sub000/pkg/types"
)

// BinanceUpdater reconciles a REST snapshot with the subsequent
// sequence-numbered WS delta stream per the Binance spot "local order
// book" protocol: https://binance-docs.github.io/apidocs/spot/en/#how-to-manage-a-local-order-book-correctly
type BinanceUpdater struct {
	mu                sync.Mutex
	symbol            string
	updatesProcessed  uint64
	lastUpdateID      uint64
	prevLastUpdateID  uint64
}

// InitBinanceBook fetches the REST snapshot and tick-size metadata for
// inst, seeds a new OrderBook, and returns the updater bound to it. The
// two REST calls run concurrently since they are independent.
func InitBinanceBook(ctx context.Context, client *resty.Client, inst types.Instrument) (*OrderBook, *BinanceUpdater, error) {
	var (
		snapshot *adapter.BinanceDepthSnapshot
		tickSize float64
		snapErr, tickErr error
		wg sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		snapshot, snapErr = adapter.FetchBinanceSnapshot(ctx, client, inst)
	}()
	go func() {
		defer wg.Done()
		tickSize, tickErr = adapter.FetchBinanceTickSize(ctx, client, inst)
	}()
	wg.Wait()

	if snapErr != nil {
		return nil, nil, snapErr
	}
	if tickErr != nil {
		return nil, nil, tickErr
	}

	b := NewOrderBook(tickSize)
	bids := adapter.ParseBinanceLevels(snapshot.Bids)
	asks := adapter.ParseBinanceLevels(snapshot.Asks)
	b.ReplaceAll(bids, asks, snapshot.LastUpdateID, time.Now())

	upd := &BinanceUpdater{
		symbol:           (&adapter.BinanceSpot{}).WireSymbol(inst),
		lastUpdateID:     snapshot.LastUpdateID,
		prevLastUpdateID: snapshot.LastUpdateID,
	}
	return b, upd, nil
}

// Update validates and applies one depth delta. It returns (snapshot,
// true, nil) when the delta was applied and downstream should emit a book
// event; (zero, false, nil) when the delta was stale and silently
// dropped; or a terminal *marketerr.InvalidSequenceError.
func (u *BinanceUpdater) Update(b *OrderBook, delta adapter.BinanceDepthUpdate) (types.BookData, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if delta.LastUpdateID <= u.lastUpdateID {
		return types.BookData{}, false, nil
	}

	expectedNext := u.lastUpdateID + 1
	if u.updatesProcessed == 0 {
		if !(delta.FirstUpdateID <= expectedNext && delta.LastUpdateID >= expectedNext) {
			return types.BookData{}, false, &marketerr.InvalidSequenceError{
				Symbol:           delta.Symbol,
				PrevLastUpdateID: u.lastUpdateID,
				FirstUpdateID:    delta.FirstUpdateID,
			}
		}
	} else if delta.FirstUpdateID != expectedNext {
		return types.BookData{}, false, &marketerr.InvalidSequenceError{
			Symbol:           delta.Symbol,
			PrevLastUpdateID: u.lastUpdateID,
			FirstUpdateID:    delta.FirstUpdateID,
		}
	}

	bids := adapter.ParseBinanceLevels(delta.Bids)
	asks := adapter.ParseBinanceLevels(delta.Asks)
	crossed := b.ApplyDelta(bids, asks, delta.LastUpdateID, time.Now())

	u.updatesProcessed++
	u.prevLastUpdateID = u.lastUpdateID
	u.lastUpdateID = delta.LastUpdateID

	if crossed {
		return types.BookData{}, false, &marketerr.InvalidSequenceError{
			Symbol:           delta.Symbol,
			PrevLastUpdateID: u.prevLastUpdateID,
			FirstUpdateID:    delta.FirstUpdateID,
		}
	}

	outBids, outAsks := b.Snapshot()
	return types.BookData{Bids: outBids, Asks: outAsks, LastSequence: u.lastUpdateID}, true, nil
}
