package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agrilink/storefront/internal/client"
	"github.com/agrilink/storefront/internal/domain/search"
	"github.com/agrilink/storefront/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxFrameBytes  = 4096
	suggestSize    = 8
	eventQueueSize = 32
)

// wsConn serializes writes to a websocket connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) write(fn func(e *jx.Encoder)) error {
	var e jx.Encoder
	fn(&e)

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, e.Bytes())
}

func (c *wsConn) keepalive(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// readLoop passes incoming frames to fn until the peer goes away.
func (c *wsConn) readLoop(fn func(data []byte)) error {
	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		fn(data)
	}
}

func (c *wsConn) close() {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.mu.Unlock()
	_ = c.conn.Close()
}

// wsContext detaches a websocket session from the upgrade request and ties
// it to the handler lifetime.
func (h *Handler) wsContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	stop := context.AfterFunc(h.closing, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// liveSearch runs as-you-type suggestions. Every frame {"q": "..."} restarts
// the debounce timer and cancels the suggestion still in flight.
func (h *Handler) liveSearch(w http.ResponseWriter, r *http.Request) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		return
	}
	c := &wsConn{conn: raw}
	defer c.close()

	ctx, cancel := h.wsContext(r)
	defer cancel()
	// Unblocks the reader on shutdown.
	defer context.AfterFunc(ctx, c.close)()
	lg := zctx.From(ctx)

	delay := h.cfg.SearchDelay
	if delay <= 0 {
		delay = search.DefaultDelay
	}
	debouncer := search.NewDebouncer(ctx, delay, func(ctx context.Context, q string) {
		page, err := h.Search.Suggest(ctx, q, suggestSize)
		if ctx.Err() != nil {
			// Superseded by a newer query.
			return
		}
		werr := c.write(func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("query")
			e.Str(q)
			if err != nil {
				e.FieldStart("error")
				e.Str("search is unavailable")
			} else {
				e.FieldStart("results")
				encodeListingPage(e, page)
			}
			e.ObjEnd()
		})
		if err != nil {
			lg.Warn("Live search failed", zap.String("query", q), zap.Error(err))
		}
		if werr != nil {
			cancel()
		}
	})
	defer debouncer.Close()

	go c.keepalive(ctx)

	err = c.readLoop(func(data []byte) {
		q, err := decodeQuery(data)
		if err != nil {
			lg.Debug("Ignoring malformed search frame", zap.Error(err))
			return
		}
		debouncer.Trigger(q)
	})
	if err != nil && ctx.Err() == nil {
		lg.Debug("Live search connection closed", zap.Error(err))
	}
}

func decodeQuery(data []byte) (string, error) {
	var q string
	d := jx.DecodeBytes(data)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "q" {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return errors.Wrap(err, "q")
		}
		q = v
		return nil
	}); err != nil {
		return "", err
	}
	return q, nil
}

func encodeListingPage(e *jx.Encoder, page *client.ListingPage) {
	data, err := json.Marshal(page)
	if err != nil {
		e.Null()
		return
	}
	e.Raw(data)
}

// eventStream pushes badge counts, session changes and notifications of the
// partition to the SPA. Signed-in partitions also get the upstream
// notification stream relayed through the event bus.
func (h *Handler) eventStream(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := h.wsContext(r)
	defer cancel()
	lg := zctx.From(ctx)
	partition := s.Partition

	// Subscribe before the handshake completes so no event is missed.
	stream := h.Bus.Stream(ctx, partition, eventQueueSize)

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &wsConn{conn: raw}

	var wg sync.WaitGroup

	if s.IsAuthenticated() && h.Notifications != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := h.Notifications.Stream(s.Context(ctx), func(n client.Notification) {
				h.Bus.Publish(events.Notification{
					Partition: partition,
					ID:        n.ID,
					Title:     n.Title,
					Message:   n.Message,
					Type:      n.Type,
					Read:      n.Read,
				})
			})
			if err != nil && ctx.Err() == nil {
				lg.Warn("Notification relay stopped", zap.Error(err))
			}
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		c.keepalive(ctx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		// The SPA sends nothing; reading detects the close.
		_ = c.readLoop(func([]byte) {})
	}()

	for ev := range stream {
		if err := c.write(func(e *jx.Encoder) { encodeEvent(e, ev) }); err != nil {
			lg.Debug("Event stream write failed", zap.Error(err))
			cancel()
		}
	}
	// Closing unblocks the reader before waiting for it.
	c.close()
	wg.Wait()
}

func encodeEvent(e *jx.Encoder, ev events.Event) {
	e.ObjStart()
	e.FieldStart("kind")
	e.Str(string(ev.Kind()))
	switch ev := ev.(type) {
	case events.GuestCartUpdated:
		encodeCount(e, ev.Count)
	case events.CartUpdated:
		encodeCount(e, ev.Count)
	case events.GuestWishlistUpdated:
		encodeCount(e, ev.Count)
	case events.WishlistUpdated:
		encodeCount(e, ev.Count)
	case events.ProfileUpdated:
		e.FieldStart("userId")
		e.Str(ev.UserID)
	case events.LoggedIn:
		e.FieldStart("userId")
		e.Str(ev.UserID)
	case events.LoggedOut:
		e.FieldStart("reason")
		e.Str(ev.Reason)
	case events.Notification:
		e.FieldStart("notification")
		client.Notification{
			ID:      ev.ID,
			Title:   ev.Title,
			Message: ev.Message,
			Type:    ev.Type,
			Read:    ev.Read,
		}.Encode(e)
	}
	e.ObjEnd()
}

func encodeCount(e *jx.Encoder, n int) {
	e.FieldStart("count")
	e.Int(n)
}
