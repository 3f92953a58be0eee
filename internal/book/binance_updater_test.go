package book

import (
	"testing"
	"time"

	"github.com/haaandolo/rotom-sub000/internal/adapter"
	"github.com/haaandolo/rotom-sub000/internal/marketerr"
)

func seededBinanceBook() (*OrderBook, *BinanceUpdater) {
	b := NewOrderBook(0.01)
	b.ReplaceAll(nil, nil, 100, time.Now())
	return b, &BinanceUpdater{lastUpdateID: 100, prevLastUpdateID: 100}
}

func TestBinanceUpdaterFirstDeltaValidation(t *testing.T) {
	b, u := seededBinanceBook()

	// First update after snapshot must satisfy U <= lastUpdateId+1 <= u.
	_, applied, err := u.Update(b, adapter.BinanceDepthUpdate{
		Symbol: "BTCUSDT", FirstUpdateID: 95, LastUpdateID: 105,
	})
	if err != nil || !applied {
		t.Fatalf("expected first delta to apply cleanly, got applied=%v err=%v", applied, err)
	}
}

func TestBinanceUpdaterRejectsGap(t *testing.T) {
	b, u := seededBinanceBook()

	// First update's FirstUpdateID is ahead of lastUpdateId+1: a gap.
	_, applied, err := u.Update(b, adapter.BinanceDepthUpdate{
		Symbol: "BTCUSDT", FirstUpdateID: 110, LastUpdateID: 120,
	})
	if applied {
		t.Fatalf("expected gapped delta to be rejected")
	}
	if _, ok := err.(*marketerr.InvalidSequenceError); !ok {
		t.Fatalf("expected InvalidSequenceError, got %T (%v)", err, err)
	}
}

func TestBinanceUpdaterDropsStaleDelta(t *testing.T) {
	b, u := seededBinanceBook()

	_, applied, err := u.Update(b, adapter.BinanceDepthUpdate{
		Symbol: "BTCUSDT", FirstUpdateID: 50, LastUpdateID: 100,
	})
	if err != nil {
		t.Fatalf("expected stale delta to be silently dropped, got err=%v", err)
	}
	if applied {
		t.Fatalf("expected stale delta not to be applied")
	}
}

func TestBinanceUpdaterRequiresContiguousSubsequentDeltas(t *testing.T) {
	b, u := seededBinanceBook()

	_, applied, err := u.Update(b, adapter.BinanceDepthUpdate{
		Symbol: "BTCUSDT", FirstUpdateID: 101, LastUpdateID: 105,
	})
	if err != nil || !applied {
		t.Fatalf("expected first delta to apply, got applied=%v err=%v", applied, err)
	}

	// Next delta must start exactly at lastUpdateID+1.
	_, applied, err = u.Update(b, adapter.BinanceDepthUpdate{
		Symbol: "BTCUSDT", FirstUpdateID: 107, LastUpdateID: 110,
	})
	if applied {
		t.Fatalf("expected non-contiguous delta to be rejected")
	}
	if _, ok := err.(*marketerr.InvalidSequenceError); !ok {
		t.Fatalf("expected InvalidSequenceError, got %T (%v)", err, err)
	}
}
