package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/wilqq-the/stronghodl/internal/domain"
)

// PriceStream pushes price updates to websocket subscribers.
// The intraday job calls Broadcast after every successful price upsert.
type PriceStream struct {
	log zerolog.Logger

	mu          sync.Mutex
	subscribers map[chan *domain.CurrentPrice]struct{}
}

// NewPriceStream creates a new price stream hub
func NewPriceStream(log zerolog.Logger) *PriceStream {
	return &PriceStream{
		log:         log.With().Str("component", "price_stream").Logger(),
		subscribers: make(map[chan *domain.CurrentPrice]struct{}),
	}
}

// Broadcast sends a price update to all connected subscribers.
// Slow subscribers are skipped rather than blocking the scheduler tick.
func (ps *PriceStream) Broadcast(price *domain.CurrentPrice) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for ch := range ps.subscribers {
		select {
		case ch <- price:
		default:
		}
	}
}

// HandleSubscribe upgrades the connection and streams price updates until
// the client disconnects.
func (ps *PriceStream) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		ps.log.Debug().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch := ps.subscribe()
	defer ps.unsubscribe(ch)

	ps.log.Debug().Msg("Price stream subscriber connected")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case price := <-ch:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, price)
			cancel()
			if err != nil {
				ps.log.Debug().Err(err).Msg("Price stream write failed, dropping subscriber")
				return
			}
		}
	}
}

func (ps *PriceStream) subscribe() chan *domain.CurrentPrice {
	ch := make(chan *domain.CurrentPrice, 8)
	ps.mu.Lock()
	ps.subscribers[ch] = struct{}{}
	ps.mu.Unlock()
	return ch
}

func (ps *PriceStream) unsubscribe(ch chan *domain.CurrentPrice) {
	ps.mu.Lock()
	delete(ps.subscribers, ch)
	ps.mu.Unlock()
}
