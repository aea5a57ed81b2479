package application

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/constants"
	"github.com/meridianhq/meridian-sdk/pkg/ws"
)

const (
	ChannelAuthenticated string = "authenticated"
)

// TenantChannel names the broadcast channel all of a tenant's connections
// join, so record and import notifications stay inside the tenant.
func TenantChannel(tenantID uuid.UUID) string {
	return fmt.Sprintf("tenant/%s", tenantID)
}

func UserChannel(userID uint) string {
	return fmt.Sprintf("user/%d", userID)
}

type HuberOptions struct {
	Pool           *pgxpool.Pool
	Logger         *logrus.Logger
	CheckOrigin    func(r *http.Request) bool
	UserRepository user.Repository
}

type Connection interface {
	ws.Connectioner
	User() user.User
}

type WsCallback func(ctx context.Context, conn Connection) error

type Huber interface {
	http.Handler
	ForEach(channel string, f WsCallback) error
	BroadcastToChannel(channel string, message []byte)
}

func NewHub(opts *HuberOptions) Huber {
	appHub := &huber{
		pool:            opts.Pool,
		logger:          opts.Logger,
		userRepo:        opts.UserRepository,
		connectionsMeta: make(map[*ws.Connection]*MetaInfo),
	}
	hub := ws.NewHub(&ws.HubOptions{
		Logger:       opts.Logger,
		CheckOrigin:  opts.CheckOrigin,
		OnConnect:    appHub.onConnect,
		OnDisconnect: appHub.onDisconnect,
	})
	appHub.hub = hub
	return appHub
}

type MetaInfo struct {
	UserID   uint
	TenantID uuid.UUID
}

type huber struct {
	hub      ws.Huber
	pool     *pgxpool.Pool
	logger   *logrus.Logger
	userRepo user.Repository

	mu              sync.RWMutex
	connectionsMeta map[*ws.Connection]*MetaInfo
}

func (h *huber) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeHTTP(w, r)
}

func (h *huber) onConnect(r *http.Request, hub *ws.Hub, conn *ws.Connection) error {
	meta := &MetaInfo{}
	usr, err := composables.UseUser(r.Context())
	if err != nil {
		// Unauthenticated connections stay; they only see public broadcasts.
		h.setMeta(conn, meta)
		return nil //nolint:nilerr
	}
	meta.UserID = usr.ID()
	meta.TenantID = usr.TenantID()
	hub.JoinChannel(ChannelAuthenticated, conn)
	hub.JoinChannel(UserChannel(usr.ID()), conn)
	hub.JoinChannel(TenantChannel(usr.TenantID()), conn)
	h.setMeta(conn, meta)
	return nil
}

func (h *huber) onDisconnect(conn *ws.Connection) {
	h.mu.Lock()
	delete(h.connectionsMeta, conn)
	h.mu.Unlock()
}

func (h *huber) setMeta(conn *ws.Connection, meta *MetaInfo) {
	h.mu.Lock()
	h.connectionsMeta[conn] = meta
	h.mu.Unlock()
}

func (h *huber) meta(conn *ws.Connection) (*MetaInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	meta, ok := h.connectionsMeta[conn]
	return meta, ok
}

func (h *huber) buildContext() context.Context {
	ctx := context.WithValue(
		context.Background(),
		constants.LoggerKey,
		logrus.NewEntry(h.logger),
	)
	return composables.WithPool(ctx, h.pool)
}

func (h *huber) BroadcastToChannel(channel string, message []byte) {
	h.hub.BroadcastToChannel(channel, message)
}

func (h *huber) ForEach(channel string, f WsCallback) error {
	ctx := h.buildContext()

	for _, conn := range h.hub.ConnectionsInChannel(channel) {
		meta, ok := h.meta(conn)
		if !ok || meta.UserID == 0 {
			continue
		}
		usr, err := h.userRepo.GetByID(ctx, meta.UserID)
		if err != nil {
			h.logger.WithError(err).Error("failed to get user by ID")
			continue
		}
		if err := f(ctx, &connection{user: usr, conn: conn}); err != nil {
			return err
		}
	}
	return nil
}

type connection struct {
	user user.User
	conn ws.Connectioner
}

func (c *connection) SendMessage(message []byte) error {
	return c.conn.SendMessage(message)
}

func (c *connection) Close() error {
	return c.conn.Close()
}

func (c *connection) User() user.User {
	return c.user
}
