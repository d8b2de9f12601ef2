package hub

import (
	"context"
	"encoding/json"
	"time"

	"civic-issue-portal/internal/domain"
	"civic-issue-portal/internal/repository"

	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量, 供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type    string  // "register", "unregister", "event"
	Client  *Client // 来源连接
	RawData []byte  // 仅用于 event (原始 WebSocket 信封)
}

// Hub 维护活跃连接集合并协调聊天消息的处理。
// 房间订阅是进程内状态, 与数据库里的社区成员资格相互独立:
// 订阅决定谁"收到"广播, 成员资格决定谁"应当"在房间里。
type Hub struct {
	messageChan chan HubMessage
	registry    *Registry

	messageRepo repository.MessageRepository
	stateRepo   repository.StateRepository
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(messageRepo repository.MessageRepository, stateRepo repository.StateRepository) *Hub {
	if messageRepo == nil {
		panic("MessageRepository cannot be nil for Hub")
	}
	if stateRepo == nil {
		panic("StateRepository cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		registry:    NewRegistry(),
		messageRepo: messageRepo,
		stateRepo:   stateRepo,
	}
}

// Registry 暴露房间订阅表, 供注册通知和测试使用
func (h *Hub) Registry() *Registry { return h.registry }

// Run 启动 Hub 的主事件处理循环。
// 它应该在一个单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		case "event":
			h.dispatchEvent(msg.Client, msg.RawData)
		default:
			log.Warnf("Hub: Received unknown message type: %s", msg.Type)
		}
	}
	log.Info("Hub is shutting down...")
}

// registerClient 处理连接注册逻辑。此时连接尚未订阅任何房间,
// 订阅由后续的 join-room 事件建立。
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	logrus.WithField("user_id", client.userID).Info("Client registered to Hub")
}

// unregisterClient 处理连接注销逻辑: 清空它所有的房间订阅并关闭
// send 通道, 让其 WritePump 退出。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	logCtx := logrus.WithField("user_id", client.userID)

	joined := h.registry.Drop(client)
	if len(joined) > 0 {
		logCtx.WithField("room_count", len(joined)).Debug("Client removed from all rooms")
	}

	// 需要检查通道是否已关闭, 防止重复关闭 panic
	select {
	case <-client.send:
		logCtx.Warn("Client send channel already closed or has data during unregister")
	default:
		close(client.send)
	}
	logCtx.Info("Client unregistered from Hub")
}

// dispatchEvent 解析信封并分发入站事件
func (h *Hub) dispatchEvent(client *Client, raw []byte) {
	if client == nil {
		return
	}
	logCtx := logrus.WithField("user_id", client.userID)

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		logCtx.WithError(err).Warn("Failed to parse websocket envelope, dropping")
		return
	}

	switch envelope.Event {
	case EventJoinRoom:
		var payload roomPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			logCtx.WithError(err).Warn("Invalid join-room payload")
			return
		}
		// 订阅不校验成员资格, 非成员的客户端拿不到入口也就不会订阅
		h.registry.Join(client, payload.CommunityID)
		logCtx.WithField("community_id", payload.CommunityID).Info("Client joined room")

	case EventLeaveRoom:
		var payload roomPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			logCtx.WithError(err).Warn("Invalid leave-room payload")
			return
		}
		h.registry.Leave(client, payload.CommunityID)
		logCtx.WithField("community_id", payload.CommunityID).Info("Client left room")

	case EventSendMessage:
		var payload sendMessagePayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			logCtx.WithError(err).Warn("Invalid send-message payload")
			return
		}
		// 异步处理持久化和广播, 避免慢的数据库写阻塞主循环
		go h.handleSendMessage(client, payload)

	default:
		logCtx.Warnf("Hub: Received unknown event: %s", envelope.Event)
	}
}

// handleSendMessage 先持久化再广播。持久化失败时只向发送者
// 回一条 message-error, 不打扰房间里的其他人。
func (h *Hub) handleSendMessage(client *Client, payload sendMessagePayload) {
	ctx := context.Background()
	logCtx := logrus.WithFields(logrus.Fields{
		"community_id": payload.CommunityID,
		"user_id":      client.userID,
		"operation":    "handleSendMessage",
	})

	senderName := payload.Sender.Name
	if senderName == "" {
		senderName = client.userName
	}

	message := domain.CommunityMessage{
		CommunityID: payload.CommunityID,
		SenderID:    client.userID, // 以认证身份为准, 不信任载荷里的 ID
		SenderName:  senderName,
		Kind:        domain.MessageKindUser,
		Text:        payload.Text,
	}

	if err := h.messageRepo.Save(ctx, &message); err != nil {
		logCtx.WithError(err).Error("Failed to persist chat message")
		h.sendToClient(client, EventMessageError, errorPayload{Reason: "Failed to send message"})
		return
	}

	// 缓存是尽力而为, 失败不影响广播
	if err := h.stateRepo.PushMessageToHistory(ctx, payload.CommunityID, message); err != nil {
		logCtx.WithError(err).Warn("Failed to push message to history cache")
	}

	// 广播给房间内所有连接, 包括发送者自己,
	// 发送者以收到的回显作为消息成功的确认
	h.broadcastEvent(payload.CommunityID, EventReceiveMessage, message)
	logCtx.WithField("message_id", message.ID).Debug("Chat message persisted and broadcast")
}

// sendToClient 将单条事件发给指定连接 (非阻塞)
func (h *Hub) sendToClient(client *Client, event string, payload interface{}) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to encode event")
		return
	}
	select {
	case client.send <- data:
	default:
		logrus.WithFields(logrus.Fields{
			"user_id": client.userID,
			"event":   event,
		}).Warn("Client send channel full, dropping event")
	}
}

// broadcastEvent 将事件发送给房间内的所有连接
func (h *Hub) broadcastEvent(communityID uint, event string, payload interface{}) {
	clients := h.registry.Connections(communityID)
	if len(clients) == 0 {
		return
	}

	data, err := encodeEvent(event, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to encode event for broadcast")
		return
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"community_id":    communityID,
		"event":           event,
		"recipient_count": len(clients),
	})
	logCtx.Debug("Broadcasting event to clients")

	for _, client := range clients {
		// 非阻塞发送, 避免单个慢客户端阻塞广播
		select {
		case client.send <- data:
		default:
			logCtx.WithField("receiver_user_id", client.userID).Warn("Client send channel full during broadcast, skipping this client")
		}
	}
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 返回 true 如果消息成功入队, false 如果队列已满。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithField("message_type", msg.Type).Warn("Hub message channel full, dropping message")
		return false
	}
}

// --- service.RoomNotifier 实现 ---
// Service 层的成员变更先落库再通知, 通知只是让房间内客户端
// 刷新成员/申请列表的提示, 不携带权威数据。

// MembershipChanged 通知房间内客户端成员或申请列表有变化
func (h *Hub) MembershipChanged(communityID uint) {
	h.broadcastEvent(communityID, EventJoinRequestUpdate, membershipPayload{CommunityID: communityID})
}

// MemberApproved 通知房间内客户端某用户的申请已被批准
func (h *Hub) MemberApproved(communityID, userID uint) {
	h.broadcastEvent(communityID, EventMemberApproved, userPayload{UserID: userID})
}

// UserKicked 通知房间内客户端某用户已被移出社区
func (h *Hub) UserKicked(communityID, userID uint) {
	h.broadcastEvent(communityID, EventUserKicked, userPayload{UserID: userID})
}

// MessageCreated 把一条已持久化的消息 (通常是系统消息) 广播到房间
func (h *Hub) MessageCreated(communityID uint, message domain.CommunityMessage) {
	h.broadcastEvent(communityID, EventReceiveMessage, message)
}
