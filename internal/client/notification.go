package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Notification is a user notification. It is exchanged as JSON both over
// REST and as websocket frames.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Decode reads a notification object. Unknown fields are skipped and numeric
// ids are accepted.
func (n *Notification) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			if d.Next() == jx.Number {
				v, err := d.Num()
				if err != nil {
					return errors.Wrap(err, "id")
				}
				n.ID = v.String()
				return nil
			}
			return decodeStr(d, "id", &n.ID)
		case "title":
			return decodeStr(d, "title", &n.Title)
		case "message":
			return decodeStr(d, "message", &n.Message)
		case "type":
			return decodeStr(d, "type", &n.Type)
		case "read":
			v, err := d.Bool()
			if err != nil {
				return errors.Wrap(err, "read")
			}
			n.Read = v
			return nil
		case "createdAt":
			var raw string
			if err := decodeStr(d, "createdAt", &raw); err != nil {
				return err
			}
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return errors.Wrap(err, "createdAt")
			}
			n.CreatedAt = t
			return nil
		default:
			return d.Skip()
		}
	})
}

func decodeStr(d *jx.Decoder, field string, dst *string) error {
	v, err := d.Str()
	if err != nil {
		return errors.Wrap(err, field)
	}
	*dst = v
	return nil
}

// Encode writes n as a JSON object.
func (n Notification) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(n.ID)
	e.FieldStart("title")
	e.Str(n.Title)
	e.FieldStart("message")
	e.Str(n.Message)
	e.FieldStart("type")
	e.Str(n.Type)
	e.FieldStart("read")
	e.Bool(n.Read)
	if !n.CreatedAt.IsZero() {
		e.FieldStart("createdAt")
		e.Str(n.CreatedAt.Format(time.RFC3339))
	}
	e.ObjEnd()
}

// NotificationClient talks to the notification service.
type NotificationClient struct {
	c      *Client
	dialer *websocket.Dialer
}

// NewNotificationClient wraps c.
func NewNotificationClient(c *Client) *NotificationClient {
	return &NotificationClient{
		c: c,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (n *NotificationClient) List(ctx context.Context) ([]Notification, error) {
	var out []Notification
	if err := n.c.Get(ctx, "/notifications", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (n *NotificationClient) MarkRead(ctx context.Context, id string) error {
	return n.c.Post(ctx, "/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

func (n *NotificationClient) streamURL() string {
	u := n.c.BaseURL()
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.JoinPath("/ws/notifications").String()
}

// Stream connects to the notification websocket with the session token of
// ctx and calls fn for every frame until ctx is done or the connection
// drops. Malformed frames are logged and skipped.
func (n *NotificationClient) Stream(ctx context.Context, fn func(Notification)) error {
	header := http.Header{}
	if _, token := SessionFrom(ctx); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := n.dialer.DialContext(ctx, n.streamURL(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			if n.c.onUnauthorized != nil {
				n.c.onUnauthorized(ctx)
			}
			return ErrUnauthorized
		}
		return errors.Wrap(err, "dial notifications")
	}
	defer func() { _ = conn.Close() }()

	// Unblock ReadMessage when the caller goes away.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = conn.Close()
	})
	defer stop()

	lg := zctx.From(ctx)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "read notification")
		}

		var msg Notification
		if err := msg.Decode(jx.DecodeBytes(data)); err != nil {
			lg.Warn("Skipping malformed notification frame",
				zap.Error(err),
				zap.Int("size", len(data)),
			)
			continue
		}
		fn(msg)
	}
}
