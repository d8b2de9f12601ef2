package hub

import "encoding/json"

// WebSocket 事件词汇表。
// 入站: join-room / leave-room / send-message
// 出站: receive-message / join-request-update / member-approved /
//       user-kicked / message-error
const (
	EventJoinRoom          = "join-room"
	EventLeaveRoom         = "leave-room"
	EventSendMessage       = "send-message"
	EventReceiveMessage    = "receive-message"
	EventJoinRequestUpdate = "join-request-update"
	EventMemberApproved    = "member-approved"
	EventUserKicked        = "user-kicked"
	EventMessageError      = "message-error"
)

// Envelope 是所有 WebSocket 消息的统一信封。
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// roomPayload 是 join-room / leave-room 的载荷
type roomPayload struct {
	CommunityID uint `json:"communityId"`
}

// senderPayload 是客户端随消息附带的发送者快照
type senderPayload struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// sendMessagePayload 是 send-message 的载荷
type sendMessagePayload struct {
	CommunityID uint          `json:"communityId"`
	Sender      senderPayload `json:"sender"`
	Text        string        `json:"text"`
}

// membershipPayload 是 join-request-update 的载荷
type membershipPayload struct {
	CommunityID uint `json:"communityId"`
}

// userPayload 是 member-approved / user-kicked 的载荷
type userPayload struct {
	UserID uint `json:"userId"`
}

// errorPayload 是 message-error 的载荷
type errorPayload struct {
	Reason string `json:"reason"`
}

// encodeEvent 把出站事件序列化为信封字节
func encodeEvent(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
