package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestClient(userID uint, name string) *Client {
	// conn 为 nil, 测试中不启动读写泵
	return &Client{userID: userID, userName: name, send: make(chan []byte, 16)}
}

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	r := NewRegistry()
	c := newTestClient(1, "a")

	r.Join(c, 3)
	r.Join(c, 3)
	r.Join(c, 3)

	assert.Equal(t, 1, r.RoomCount(3), "重复加入不应产生重复条目")
}

func TestRegistry_MultipleRoomsPerClient(t *testing.T) {
	r := NewRegistry()
	c := newTestClient(1, "a")

	r.Join(c, 3)
	r.Join(c, 4)

	assert.Equal(t, 1, r.RoomCount(3))
	assert.Equal(t, 1, r.RoomCount(4))
}

func TestRegistry_LeaveUnsubscribedIsNoop(t *testing.T) {
	r := NewRegistry()
	c := newTestClient(1, "a")

	r.Leave(c, 99)

	assert.Equal(t, 0, r.RoomCount(99))
}

func TestRegistry_DropRemovesAllSubscriptions(t *testing.T) {
	r := NewRegistry()
	c := newTestClient(1, "a")
	other := newTestClient(2, "b")

	r.Join(c, 3)
	r.Join(c, 4)
	r.Join(other, 3)

	joined := r.Drop(c)

	assert.ElementsMatch(t, []uint{3, 4}, joined)
	assert.Equal(t, 1, r.RoomCount(3), "其他连接的订阅不受影响")
	assert.Equal(t, 0, r.RoomCount(4), "空房间应被回收")
	assert.Empty(t, r.Connections(4))
}

func TestRegistry_ConnectionsSnapshot(t *testing.T) {
	r := NewRegistry()
	a := newTestClient(1, "a")
	b := newTestClient(2, "b")

	r.Join(a, 3)
	r.Join(b, 3)

	clients := r.Connections(3)
	assert.Len(t, clients, 2)
	assert.ElementsMatch(t, []*Client{a, b}, clients)
}
