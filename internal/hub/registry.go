package hub

import "sync"

// Registry 维护进程内的房间成员表: 哪个连接订阅了哪个社区房间。
// 连接可以同时订阅多个房间, 订阅与数据库成员资格无关。
type Registry struct {
	mu    sync.RWMutex
	rooms map[uint]map[*Client]struct{}
	subs  map[*Client]map[uint]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[uint]map[*Client]struct{}),
		subs:  make(map[*Client]map[uint]struct{}),
	}
}

// Join 把连接加入房间, 重复加入是幂等的
func (r *Registry) Join(client *Client, communityID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[communityID] == nil {
		r.rooms[communityID] = make(map[*Client]struct{})
	}
	r.rooms[communityID][client] = struct{}{}
	if r.subs[client] == nil {
		r.subs[client] = make(map[uint]struct{})
	}
	r.subs[client][communityID] = struct{}{}
}

// Leave 把连接移出房间, 未订阅时是空操作
func (r *Registry) Leave(client *Client, communityID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(client, communityID)
}

// Drop 移除连接的所有订阅, 返回它曾订阅的房间
func (r *Registry) Drop(client *Client) []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	joined := make([]uint, 0, len(r.subs[client]))
	for communityID := range r.subs[client] {
		joined = append(joined, communityID)
		r.removeLocked(client, communityID)
	}
	return joined
}

// Connections 返回房间内当前所有连接的快照
func (r *Registry) Connections(communityID uint) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.rooms[communityID]))
	for client := range r.rooms[communityID] {
		clients = append(clients, client)
	}
	return clients
}

// RoomCount 返回房间内的连接数
func (r *Registry) RoomCount(communityID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[communityID])
}

// removeLocked 需要持有写锁, 房间空了就回收
func (r *Registry) removeLocked(client *Client, communityID uint) {
	if room, ok := r.rooms[communityID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(r.rooms, communityID)
		}
	}
	if subs, ok := r.subs[client]; ok {
		delete(subs, communityID)
		if len(subs) == 0 {
			delete(r.subs, client)
		}
	}
}
