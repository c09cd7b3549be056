// Package push receives the server's change signals over a websocket.
package push

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/dastanaron/bookmarktree/internal/remote"
)

// SocketPath is where the server accepts listeners.
const SocketPath = "/socket/"

// Notifier listens on one server's websocket.
type Notifier struct {
	url    string
	dialer *websocket.Dialer
	log    logrus.FieldLogger
}

var _ remote.Notifier = (*Notifier)(nil)

// New returns a notifier for the server at serverURL, an http or https
// base URL.
func New(serverURL string, log logrus.FieldLogger) (*Notifier, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/") + SocketPath)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, errors.New("unsupported server URL scheme " + u.Scheme)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Notifier{url: u.String(), dialer: websocket.DefaultDialer, log: log}, nil
}

// Listen calls onChange for every frame until ctx is done or the
// connection drops. It does not reconnect.
func (n *Notifier) Listen(ctx context.Context, onChange func()) error {
	conn, _, err := n.dialer.DialContext(ctx, n.url, nil)
	if err != nil {
		return err
	}
	n.log.WithField("url", n.url).Info("listening for changes")

	stop := context.AfterFunc(ctx, func() {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	})
	defer func() {
		stop()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		onChange()
	}
}
