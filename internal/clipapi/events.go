package clipapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/HerbHall/cliphub/internal/event"
)

const (
	subscriberBuffer = 32
	writeTimeout     = 5 * time.Second
)

// Notification is the message pushed to event subscribers.
type Notification struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Hub fans clip events out to WebSocket subscribers. A subscriber that falls
// behind by more than its buffer is disconnected.
type Hub struct {
	logger *zap.Logger

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	msgs      chan []byte
	closeSlow func()
}

// NewHub creates an empty Hub. Feed it with bus.SubscribeAll(hub.HandleEvent).
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{logger: logger, subs: make(map[*subscriber]struct{})}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// HandleEvent broadcasts e to every subscriber without blocking.
func (h *Hub) HandleEvent(_ context.Context, e event.Event) {
	msg, err := json.Marshal(Notification{Type: e.Topic, Timestamp: e.Timestamp, Data: e.Payload})
	if err != nil {
		h.logger.Error("marshal clip event", zap.String("topic", e.Topic), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.msgs <- msg:
		default:
			go s.closeSlow()
		}
	}
}

// ServeHTTP upgrades the request and streams notifications until the client
// goes away.
//
//	@Summary		Subscribe to clip events
//	@Description	WebSocket stream of clip.created, clip.updated and clip.deleted notifications.
//	@Tags			clips
//	@Success		101
//	@Router			/clips/events [get]
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Lift the server write deadline for this long-lived connection.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer c.CloseNow()

	ctx := c.CloseRead(r.Context())
	s := &subscriber{
		msgs: make(chan []byte, subscriberBuffer),
		closeSlow: func() {
			c.Close(websocket.StatusPolicyViolation, "subscriber too slow")
		},
	}
	h.add(s)
	defer h.remove(s)

	for {
		select {
		case msg := <-s.msgs:
			if err := write(ctx, c, msg); err != nil {
				return
			}
		case <-ctx.Done():
			c.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.logger.Debug("event subscriber connected", zap.Int("subscribers", n))
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	n := len(h.subs)
	h.mu.Unlock()
	h.logger.Debug("event subscriber disconnected", zap.Int("subscribers", n))
}

func write(ctx context.Context, c *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.Write(ctx, websocket.MessageText, msg)
}
