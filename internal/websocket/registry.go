package websocket

import "container/list"

// live sessions of one room keyed by connection handle, in join order.
// Owned by the room goroutine; not safe for concurrent use.
type Registry struct {
	order *list.List
	index map[string]*list.Element
}

func NewRegistry() *Registry {
	return &Registry{
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

// registers c; returns false if its handle is already present
func (r *Registry) Add(c *Client) bool {
	if _, exists := r.index[c.ID]; exists {
		return false
	}

	r.index[c.ID] = r.order.PushBack(c)
	return true
}

// removes the session with the given handle
func (r *Registry) Remove(id string) (*Client, bool) {
	el, exists := r.index[id]
	if !exists {
		return nil, false
	}

	delete(r.index, id)
	return r.order.Remove(el).(*Client), true
}

func (r *Registry) Get(id string) (*Client, bool) {
	el, exists := r.index[id]
	if !exists {
		return nil, false
	}

	return el.Value.(*Client), true
}

func (r *Registry) Len() int {
	return len(r.index)
}

// returns the registered sessions in join order
func (r *Registry) Clients() []*Client {
	clients := make([]*Client, 0, len(r.index))

	for el := r.order.Front(); el != nil; el = el.Next() {
		clients = append(clients, el.Value.(*Client))
	}

	return clients
}

// returns the roster in join order
func (r *Registry) Participants() []Participant {
	participants := make([]Participant, 0, len(r.index))

	for el := r.order.Front(); el != nil; el = el.Next() {
		c := el.Value.(*Client)
		participants = append(participants, Participant{
			UserID:      c.UserID,
			DisplayName: c.DisplayName,
		})
	}

	return participants
}

// drops every session and returns them in join order
func (r *Registry) Clear() []*Client {
	clients := r.Clients()
	r.order.Init()
	r.index = make(map[string]*list.Element)
	return clients
}
