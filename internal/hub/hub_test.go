package hub

import (
	"encoding/json"
	"errors"
	"testing"

	"civic-issue-portal/internal/domain"
	"civic-issue-portal/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *mocks.MessageRepository, *mocks.StateRepository) {
	t.Helper()
	messageRepo := new(mocks.MessageRepository)
	stateRepo := new(mocks.StateRepository)
	return NewHub(messageRepo, stateRepo), messageRepo, stateRepo
}

// decodeEnvelope 从客户端 send 通道读取一条出站消息并解码
func decodeEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case raw := <-c.send:
		var envelope Envelope
		require.NoError(t, json.Unmarshal(raw, &envelope))
		return envelope
	default:
		t.Fatal("expected a message on the client send channel")
		return Envelope{}
	}
}

func requireNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("expected no message, got: %s", raw)
	default:
	}
}

func TestHub_SendMessage_PersistsThenBroadcastsToAllIncludingSender(t *testing.T) {
	h, messageRepo, stateRepo := newTestHub(t)
	sender := newTestClient(1, "Priya")
	peer := newTestClient(2, "Ravi")
	h.registry.Join(sender, 3)
	h.registry.Join(peer, 3)

	messageRepo.On("Save", mock.Anything, mock.MatchedBy(func(m *domain.CommunityMessage) bool {
		assert.Equal(t, uint(3), m.CommunityID)
		assert.Equal(t, uint(1), m.SenderID, "发送者以认证身份为准")
		assert.Equal(t, "Priya", m.SenderName)
		assert.Equal(t, domain.MessageKindUser, m.Kind)
		assert.Equal(t, "hello ward 12", m.Text)
		return true
	})).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.CommunityMessage).ID = 42
		}).
		Return(nil).
		Once()
	stateRepo.On("PushMessageToHistory", mock.Anything, uint(3), mock.AnythingOfType("domain.CommunityMessage")).Return(nil).Once()

	h.handleSendMessage(sender, sendMessagePayload{
		CommunityID: 3,
		Sender:      senderPayload{ID: 1, Name: "Priya"},
		Text:        "hello ward 12",
	})

	// 发送者和房间内其他连接都收到回显
	for _, c := range []*Client{sender, peer} {
		envelope := decodeEnvelope(t, c)
		assert.Equal(t, EventReceiveMessage, envelope.Event)
		var msg domain.CommunityMessage
		require.NoError(t, json.Unmarshal(envelope.Data, &msg))
		assert.Equal(t, uint(42), msg.ID, "广播携带服务端分配的 ID")
		assert.Equal(t, "hello ward 12", msg.Text)
	}

	messageRepo.AssertExpectations(t)
	stateRepo.AssertExpectations(t)
}

func TestHub_SendMessage_PersistFailureOnlyNotifiesSender(t *testing.T) {
	h, messageRepo, stateRepo := newTestHub(t)
	sender := newTestClient(1, "Priya")
	peer := newTestClient(2, "Ravi")
	h.registry.Join(sender, 3)
	h.registry.Join(peer, 3)

	messageRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.CommunityMessage")).
		Return(errors.New("db down")).
		Once()

	h.handleSendMessage(sender, sendMessagePayload{CommunityID: 3, Text: "hello"})

	envelope := decodeEnvelope(t, sender)
	assert.Equal(t, EventMessageError, envelope.Event)
	requireNoMessage(t, peer)
	stateRepo.AssertNotCalled(t, "PushMessageToHistory", mock.Anything, mock.Anything, mock.Anything)
}

func TestHub_SendMessage_CacheFailureDoesNotBlockBroadcast(t *testing.T) {
	h, messageRepo, stateRepo := newTestHub(t)
	sender := newTestClient(1, "Priya")
	h.registry.Join(sender, 3)

	messageRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.CommunityMessage")).Return(nil).Once()
	stateRepo.On("PushMessageToHistory", mock.Anything, uint(3), mock.AnythingOfType("domain.CommunityMessage")).
		Return(errors.New("redis down")).
		Once()

	h.handleSendMessage(sender, sendMessagePayload{CommunityID: 3, Text: "hello"})

	envelope := decodeEnvelope(t, sender)
	assert.Equal(t, EventReceiveMessage, envelope.Event)
}

func TestHub_SendMessage_OrderingPreservedPerRoom(t *testing.T) {
	h, messageRepo, stateRepo := newTestHub(t)
	sender := newTestClient(1, "Priya")
	peer := newTestClient(2, "Ravi")
	h.registry.Join(sender, 3)
	h.registry.Join(peer, 3)

	var nextID uint
	messageRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.CommunityMessage")).
		Run(func(args mock.Arguments) {
			nextID++
			args.Get(1).(*domain.CommunityMessage).ID = nextID
		}).
		Return(nil).
		Twice()
	stateRepo.On("PushMessageToHistory", mock.Anything, uint(3), mock.AnythingOfType("domain.CommunityMessage")).Return(nil).Twice()

	// A 的处理完成 (广播已发出) 之后 B 才开始
	h.handleSendMessage(sender, sendMessagePayload{CommunityID: 3, Text: "A"})
	h.handleSendMessage(sender, sendMessagePayload{CommunityID: 3, Text: "B"})

	// 每个订阅的连接都按 A, B 的顺序收到
	for _, c := range []*Client{sender, peer} {
		var first, second domain.CommunityMessage
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, c).Data, &first))
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, c).Data, &second))
		assert.Equal(t, "A", first.Text)
		assert.Equal(t, "B", second.Text)
	}
}

func TestHub_DispatchEvent_JoinAndLeaveRoom(t *testing.T) {
	h, _, _ := newTestHub(t)
	c := newTestClient(1, "Priya")

	join, _ := json.Marshal(Envelope{Event: EventJoinRoom, Data: json.RawMessage(`{"communityId":3}`)})
	h.dispatchEvent(c, join)
	assert.Equal(t, 1, h.registry.RoomCount(3))

	leave, _ := json.Marshal(Envelope{Event: EventLeaveRoom, Data: json.RawMessage(`{"communityId":3}`)})
	h.dispatchEvent(c, leave)
	assert.Equal(t, 0, h.registry.RoomCount(3))
}

func TestHub_DispatchEvent_MalformedPayloadIsDropped(t *testing.T) {
	h, _, _ := newTestHub(t)
	c := newTestClient(1, "Priya")

	h.dispatchEvent(c, []byte("not json"))
	h.dispatchEvent(c, []byte(`{"event":"join-room","data":"oops"}`))

	assert.Equal(t, 0, h.registry.RoomCount(0))
	requireNoMessage(t, c)
}

func TestHub_UnregisterDropsAllRoomsAndClosesSend(t *testing.T) {
	h, _, _ := newTestHub(t)
	c := newTestClient(1, "Priya")
	h.registry.Join(c, 3)
	h.registry.Join(c, 4)

	h.unregisterClient(c)

	assert.Equal(t, 0, h.registry.RoomCount(3))
	assert.Equal(t, 0, h.registry.RoomCount(4))
	_, open := <-c.send
	assert.False(t, open, "send 通道应已关闭")
}

func TestHub_NotifierEventsReachSubscribers(t *testing.T) {
	h, _, _ := newTestHub(t)
	member := newTestClient(1, "Priya")
	outsider := newTestClient(2, "Ravi")
	h.registry.Join(member, 3)
	h.registry.Join(outsider, 99)

	h.MembershipChanged(3)
	envelope := decodeEnvelope(t, member)
	assert.Equal(t, EventJoinRequestUpdate, envelope.Event)
	requireNoMessage(t, outsider)

	h.MemberApproved(3, 9)
	envelope = decodeEnvelope(t, member)
	assert.Equal(t, EventMemberApproved, envelope.Event)
	var approved userPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &approved))
	assert.Equal(t, uint(9), approved.UserID)

	h.UserKicked(3, 9)
	envelope = decodeEnvelope(t, member)
	assert.Equal(t, EventUserKicked, envelope.Event)

	h.MessageCreated(3, domain.CommunityMessage{ID: 7, CommunityID: 3, Kind: domain.MessageKindSystem, Text: "Ravi has left the community"})
	envelope = decodeEnvelope(t, member)
	assert.Equal(t, EventReceiveMessage, envelope.Event)
	var msg domain.CommunityMessage
	require.NoError(t, json.Unmarshal(envelope.Data, &msg))
	assert.Equal(t, domain.MessageKindSystem, msg.Kind)
}
