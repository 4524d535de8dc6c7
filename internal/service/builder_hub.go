package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/util"
	"sage_edu_backend/pkg/logger"
	"sage_edu_backend/pkg/monitoring"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	storeTimeout   = 10 * time.Second

	builderChannelPrefix = "course_builder:"
)

// 编辑器上行事件
const (
	EventDragStart = "DRAG_START"
	EventDragHover = "DRAG_HOVER"
	EventDragEnd   = "DRAG_END"
	EventDrop      = "DROP"
	EventSelect    = "SELECT"
	EventDelete    = "DELETE"
	EventUpdate    = "UPDATE"
	EventRefresh   = "REFRESH"
)

// 编辑器下行事件
const (
	EventTimeline        = "TIMELINE"
	EventDragState       = "DRAG_STATE"
	EventModuleSelected  = "MODULE_SELECTED"
	EventTimelineChanged = "TIMELINE_CHANGED"
	EventError           = "ERROR"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type BuilderEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type builderEventData struct {
	ModuleType model.ModuleType `json:"moduleType"`
	ModuleID   string           `json:"moduleId"`
	Position   *int             `json:"position"`
	Update     ModuleUpdate     `json:"update"`
}

type TimelineView struct {
	CourseID     string         `json:"courseId"`
	Slots        []TimelineSlot `json:"slots"`
	DropZones    []DropZone     `json:"dropZones"`
	TotalMinutes int            `json:"totalMinutes"`
}

func NewTimelineView(courseID string, layout TimelineLayout) TimelineView {
	return TimelineView{
		CourseID:     courseID,
		Slots:        layout.Slots,
		DropZones:    layout.DropZones(),
		TotalMinutes: layout.TotalMinutes(),
	}
}

func outbound(eventType string, data interface{}) BuilderEvent {
	raw, _ := json.Marshal(data)
	return BuilderEvent{Type: eventType, Data: raw}
}

// clientError 只向前端暴露可预期的错误，存储层错误统一为 operation failed
func clientError(err error) BuilderEvent {
	msg := "operation failed"
	for _, known := range []error{
		util.ErrInvalidModuleType, util.ErrInvalidPosition, util.ErrInvalidDuration,
		util.ErrInvalidField, util.ErrSlotOccupied, util.ErrNoActiveDrag, util.ErrDropRejected,
		util.ErrModuleNotFound,
	} {
		if errors.Is(err, known) {
			msg = known.Error()
			break
		}
	}
	return outbound(EventError, map[string]string{"message": msg})
}

// DispatchBuilderEvent 在会话上执行一条上行事件，返回要回给当前连接的事件
func DispatchBuilderEvent(ctx context.Context, session *BuilderSession, ev BuilderEvent) []BuilderEvent {
	var data builderEventData
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return []BuilderEvent{outbound(EventError, map[string]string{"message": "malformed event"})}
		}
	}

	timeline := func() BuilderEvent {
		return outbound(EventTimeline, NewTimelineView(session.CourseID, session.Layout()))
	}

	switch ev.Type {
	case EventDragStart:
		var err error
		if data.ModuleID != "" {
			err = session.BeginDragModule(data.ModuleID)
		} else {
			err = session.BeginDragType(data.ModuleType)
		}
		if err != nil {
			return []BuilderEvent{clientError(err)}
		}
		return nil

	case EventDragHover:
		if data.Position == nil {
			return nil
		}
		session.Drag().UpdateHoverPosition(*data.Position)
		return nil

	case EventDragEnd:
		session.Drag().EndDrag()
		return nil

	case EventDrop:
		if data.Position == nil {
			session.Drag().EndDrag()
			return []BuilderEvent{clientError(util.ErrInvalidPosition)}
		}
		_, _, err := session.Drop(ctx, *data.Position)
		if err != nil {
			logDispatchError(session, ev.Type, err)
			return []BuilderEvent{clientError(err), timeline()}
		}
		return []BuilderEvent{timeline()}

	case EventSelect:
		m, err := session.Apply(ctx, Intent{Kind: IntentSelect, ModuleID: data.ModuleID})
		if err != nil {
			return []BuilderEvent{clientError(err)}
		}
		return []BuilderEvent{outbound(EventModuleSelected, m)}

	case EventDelete:
		if err := session.Delete(ctx, data.ModuleID); err != nil {
			logDispatchError(session, ev.Type, err)
			return []BuilderEvent{clientError(err), timeline()}
		}
		return []BuilderEvent{timeline()}

	case EventUpdate:
		m, err := session.Update(ctx, data.ModuleID, data.Update)
		if err != nil {
			logDispatchError(session, ev.Type, err)
			return []BuilderEvent{clientError(err), timeline()}
		}
		return []BuilderEvent{outbound(EventModuleSelected, m), timeline()}

	case EventRefresh:
		if err := session.Load(ctx); err != nil {
			logDispatchError(session, ev.Type, err)
			return []BuilderEvent{clientError(err)}
		}
		return []BuilderEvent{timeline()}

	default:
		return []BuilderEvent{outbound(EventError, map[string]string{"message": "unknown event type"})}
	}
}

// dispatchSafely 事件处理中的 panic 只影响当前事件，连接和进程不受影响
func dispatchSafely(ctx context.Context, session *BuilderSession, ev BuilderEvent) (replies []BuilderEvent) {
	defer func() {
		if r := recover(); r != nil {
			courseID := ""
			if session != nil {
				courseID = session.CourseID
			}
			logger.Log.Error("Course builder event panicked",
				zap.String("courseId", courseID),
				zap.String("event", ev.Type),
				zap.Any("panic", r),
				zap.Stack("stack"))
			replies = []BuilderEvent{outbound(EventError, map[string]string{"message": "operation failed"})}
		}
	}()
	return DispatchBuilderEvent(ctx, session, ev)
}

func logDispatchError(session *BuilderSession, eventType string, err error) {
	logger.Log.Warn("Course builder event failed",
		zap.String("courseId", session.CourseID),
		zap.String("event", eventType),
		zap.Error(err))
}

type BuilderClient struct {
	Hub         *BuilderHub
	Conn        *websocket.Conn
	Send        chan []byte
	UserID      uint
	Session     *BuilderSession
	Limiter     *rate.Limiter
	unsubscribe func()

	mu     sync.Mutex
	closed bool
}

func (c *BuilderClient) push(ev BuilderEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if c.pushRaw(payload) {
		monitoring.BuilderEventCounter.WithLabelValues(ev.Type, "out").Inc()
	}
}

// pushRaw 发送缓冲满或连接已关闭时丢弃
func (c *BuilderClient) pushRaw(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

func (c *BuilderClient) close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *BuilderClient) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.ctx.Done():
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.UserID))
			}
			break
		}

		for _, r := range c.handleMessage(message) {
			c.push(r)
		}
	}
}

// handleMessage 解析并执行一条上行消息，只有悬停事件受限流约束
func (c *BuilderClient) handleMessage(message []byte) []BuilderEvent {
	var ev BuilderEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		return nil
	}
	if ev.Type == EventDragHover && c.Limiter != nil && !c.Limiter.Allow() {
		return nil
	}
	monitoring.BuilderEventCounter.WithLabelValues(ev.Type, "in").Inc()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	return dispatchSafely(ctx, c.Session, ev)
}

func (c *BuilderClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// BuilderHub 管理所有编辑器连接，按课程分组
// 配置了 Redis 时通过 pub/sub 在多实例间转发时间线变更通知
type BuilderHub struct {
	mu         sync.RWMutex
	rooms      map[string]map[*BuilderClient]struct{}
	register   chan *BuilderClient
	unregister chan *BuilderClient
	Redis      *redis.Client
	Builder    *CourseBuilderService
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewBuilderHub(rdb *redis.Client, builder *CourseBuilderService) *BuilderHub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &BuilderHub{
		rooms:      make(map[string]map[*BuilderClient]struct{}),
		register:   make(chan *BuilderClient),
		unregister: make(chan *BuilderClient),
		Redis:      rdb,
		Builder:    builder,
		ctx:        ctx,
		cancel:     cancel,
	}
	if builder != nil {
		builder.OnTimelineChanged(h.NotifyTimelineChanged)
	}
	return h
}

func (h *BuilderHub) Run() {
	if h.Redis != nil {
		pubsub := h.Redis.PSubscribe(h.ctx, builderChannelPrefix+"*")
		go func() {
			defer pubsub.Close()
			for msg := range pubsub.Channel() {
				courseID := strings.TrimPrefix(msg.Channel, builderChannelPrefix)
				h.pushToLocalRoom(courseID, []byte(msg.Payload))
			}
		}()
	}

	for {
		select {
		case <-h.ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			room, ok := h.rooms[client.Session.CourseID]
			if !ok {
				room = make(map[*BuilderClient]struct{})
				h.rooms[client.Session.CourseID] = room
			}
			room[client] = struct{}{}
			h.mu.Unlock()
			monitoring.BuilderSessions.Inc()

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *BuilderHub) remove(client *BuilderClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[client.Session.CourseID]
	if !ok {
		return
	}
	if _, ok := room[client]; !ok {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, client.Session.CourseID)
	}
	client.close()
	monitoring.BuilderSessions.Dec()
}

// NotifyTimelineChanged 通知同一课程的所有编辑器刷新
func (h *BuilderHub) NotifyTimelineChanged(courseID string) {
	payload, _ := json.Marshal(outbound(EventTimelineChanged, map[string]string{"courseId": courseID}))
	monitoring.BuilderEventCounter.WithLabelValues(EventTimelineChanged, "out").Inc()

	if h.Redis == nil {
		h.pushToLocalRoom(courseID, payload)
		return
	}
	if err := h.Redis.Publish(h.ctx, builderChannelPrefix+courseID, payload).Err(); err != nil {
		logger.Log.Error("Failed to publish timeline change", zap.String("courseId", courseID), zap.Error(err))
		h.pushToLocalRoom(courseID, payload)
	}
}

func (h *BuilderHub) pushToLocalRoom(courseID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[courseID] {
		client.pushRaw(payload)
	}
}

// SessionCount 某课程当前打开的编辑器数量
func (h *BuilderHub) SessionCount(courseID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[courseID])
}

// Stop 关闭所有编辑器连接
func (h *BuilderHub) Stop() {
	logger.Log.Info("BuilderHub stopping: closing editor connections...")
	h.cancel()

	h.mu.Lock()
	closed := 0
	for courseID, room := range h.rooms {
		for client := range room {
			client.close()
			closed++
		}
		delete(h.rooms, courseID)
	}
	h.mu.Unlock()

	monitoring.BuilderSessions.Set(0)
	logger.Log.Info("BuilderHub stopped", zap.Int("closedConnections", closed))
}

// ServeBuilderWs 升级连接并为该课程创建一个编辑会话
func ServeBuilderWs(hub *BuilderHub, w http.ResponseWriter, r *http.Request, userID uint, courseID string) {
	session := NewBuilderSession(courseID, hub.Builder, hub.Builder.DefaultDuration(), hub.Builder.MaxPosition())
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	err := session.Load(ctx)
	cancel()
	if err != nil {
		logger.Log.Error("Failed to load course timeline", zap.String("courseId", courseID), zap.Error(err))
		http.Error(w, "operation failed", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", userID))
		return
	}
	client := &BuilderClient{
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		UserID:  userID,
		Session: session,
		Limiter: rate.NewLimiter(rate.Limit(60), 120),
	}
	client.unsubscribe = session.Drag().Subscribe(func(s DragSnapshot) {
		client.push(outbound(EventDragState, s))
	})
	client.push(outbound(EventTimeline, NewTimelineView(courseID, session.Layout())))

	select {
	case hub.register <- client:
	case <-hub.ctx.Done():
		client.close()
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
