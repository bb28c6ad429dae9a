// Package realtime pushes live appointment, thread and inbox feeds to dashboards over
// websockets. Each connection owns one SubscriptionManager; the client switches the
// thread and inbox feeds with small JSON commands.
package realtime

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/Freeeeeet/classdesk/internal/service"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	OpWatchThread   = "watch_thread"
	OpUnwatchThread = "unwatch_thread"
	OpWatchInbox    = "watch_inbox"
	OpUnwatchInbox  = "unwatch_inbox"
)

var errUnknownOp = errors.New("unknown op")

type clientOp struct {
	Op            string `json:"op"`
	CounterpartID string `json:"counterpartId"`
}

type Gateway struct {
	appts    *service.AppointmentService
	convs    *service.ConversationService
	registry *Registry
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewGateway(appts *service.AppointmentService, convs *service.ConversationService, registry *Registry, logger *zap.Logger) *Gateway {
	return &Gateway{
		appts:    appts,
		convs:    convs,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// Serve upgrades the request and streams feeds for session until the client leaves.
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request, session *model.Session) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("Websocket upgrade failed", zap.String("uid", session.UID), zap.Error(err))
		return
	}

	logger := g.logger.With(zap.String("uid", session.UID), zap.String("role", session.Role.String()))
	c := newConn(ws, session.UID, logger)
	g.registry.register(c)

	subs := service.NewSubscriptionManager(session, g.appts, g.convs, logger)
	defer func() {
		// The connection goes first so that a handler blocked on push returns.
		c.close()
		subs.Close()
		g.registry.unregister(c)
		logger.Info("Feed client disconnected")
	}()

	logger.Info("Feed client connected")

	err = subs.WatchAppointments(c.ctx, func(list []*model.Appointment) {
		c.push(Frame{Feed: string(service.FeedAppointments), Key: session.UID, Data: orEmpty(list)})
	}, c.pushError)
	if err != nil {
		logger.Error("Failed to start appointments feed", zap.Error(err))
		c.pushError(err)
		return
	}

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var op clientOp
		if err := ws.ReadJSON(&op); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Websocket read failed", zap.Error(err))
			}
			return
		}
		if err := g.handle(c, subs, session, op); err != nil {
			c.pushError(err)
		}
	}
}

func (g *Gateway) handle(c *conn, subs *service.SubscriptionManager, session *model.Session, op clientOp) error {
	switch op.Op {
	case OpWatchThread:
		if op.CounterpartID == "" {
			return fmt.Errorf("%s: %w: counterpartId", op.Op, service.ErrEmptyInput)
		}
		threadID := g.convs.ThreadWith(session, op.CounterpartID)
		return subs.WatchThread(c.ctx, op.CounterpartID, func(msgs []*model.Message) {
			c.push(Frame{Feed: string(service.FeedThread), Key: threadID, Data: orEmpty(msgs)})
		}, c.pushError)

	case OpUnwatchThread:
		subs.Unsubscribe(service.FeedThread)
		return nil

	case OpWatchInbox:
		return subs.WatchInbox(c.ctx, func(convs []*model.Conversation) {
			c.push(Frame{Feed: string(service.FeedInbox), Key: session.UID, Data: orEmpty(convs)})
		}, c.pushError)

	case OpUnwatchInbox:
		subs.Unsubscribe(service.FeedInbox)
		return nil

	default:
		return fmt.Errorf("%w %q", errUnknownOp, op.Op)
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
