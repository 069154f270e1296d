// Package room implements the in-process media room registry the signaling
// endpoint relays through, plus the AI agent participant that lives inside
// every room.
package room

import (
	"encoding/json"
	"sync"

	"github.com/cloudy-ai/cloudy/pkg/gateway/metrics"
	"github.com/cloudy-ai/cloudy/pkg/gateway/protocol"
)

// Sender delivers server frames to one connected participant. Implementations
// must be safe for concurrent use; failed sends are the sender's problem.
type Sender interface {
	Send(v any) error
}

// Hub tracks all active rooms.
type Hub struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	metrics *metrics.Metrics
}

// NewHub creates an empty hub. metrics may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[string]*Room),
		metrics: m,
	}
}

// Room returns the room with the given name, creating it if needed.
func (h *Hub) Room(name string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[name]
	if !ok {
		r = &Room{
			name:         name,
			hub:          h,
			participants: make(map[string]*participant),
		}
		h.rooms[name] = r
		if h.metrics != nil {
			h.metrics.RoomsActive.Inc()
		}
	}
	return r
}

// Lookup returns the room if it exists.
func (h *Hub) Lookup(name string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[name]
	return r, ok
}

// Count returns the number of active rooms.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

func (h *Hub) remove(name string, r *Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[name] == r {
		delete(h.rooms, name)
		if h.metrics != nil {
			h.metrics.RoomsActive.Dec()
		}
	}
}

type participant struct {
	identity string
	name     string
	sender   Sender
	tracks   map[string]protocol.TrackInfo
}

func (p *participant) info() protocol.ParticipantInfo {
	tracks := make([]protocol.TrackInfo, 0, len(p.tracks))
	for _, t := range p.tracks {
		tracks = append(tracks, t)
	}
	return protocol.ParticipantInfo{
		Identity: p.identity,
		Name:     p.name,
		Tracks:   tracks,
	}
}

// Room is one media room. All broadcasts are relayed to every participant
// except the originator.
type Room struct {
	name string
	hub  *Hub

	mu           sync.Mutex
	participants map[string]*participant
}

// Name returns the room name.
func (r *Room) Name() string { return r.name }

// Join adds a participant and announces it to the others. Joining with an
// identity that is already present replaces the previous connection. Returns
// the roster as seen before the join.
func (r *Room) Join(identity, name string, sender Sender) []protocol.ParticipantInfo {
	r.mu.Lock()
	others := make([]protocol.ParticipantInfo, 0, len(r.participants))
	for id, p := range r.participants {
		if id == identity {
			continue
		}
		others = append(others, p.info())
	}
	_, rejoin := r.participants[identity]
	r.participants[identity] = &participant{
		identity: identity,
		name:     name,
		sender:   sender,
		tracks:   make(map[string]protocol.TrackInfo),
	}
	if !rejoin && r.hub != nil && r.hub.metrics != nil {
		r.hub.metrics.RoomParticipants.Inc()
	}
	r.mu.Unlock()

	r.broadcast(identity, protocol.ServerParticipantJoined{
		Type: "participant_joined",
		Participant: protocol.ParticipantInfo{
			Identity: identity,
			Name:     name,
			Tracks:   []protocol.TrackInfo{},
		},
	})
	return others
}

// Leave removes a participant and announces the departure. Empty rooms are
// dropped from the hub.
func (r *Room) Leave(identity string) {
	r.leave(identity, nil)
}

// LeaveSender removes the participant only while it is still bound to sender.
// A connection that was replaced by a rejoin must use this for its teardown so
// it cannot evict the live connection holding the same identity.
func (r *Room) LeaveSender(identity string, sender Sender) {
	r.leave(identity, sender)
}

func (r *Room) leave(identity string, sender Sender) {
	r.mu.Lock()
	p, ok := r.participants[identity]
	if ok && sender != nil && p.sender != sender {
		ok = false
	}
	if ok {
		delete(r.participants, identity)
		if r.hub != nil && r.hub.metrics != nil {
			r.hub.metrics.RoomParticipants.Dec()
		}
	}
	empty := len(r.participants) == 0
	r.mu.Unlock()

	if !ok {
		return
	}
	r.broadcast(identity, protocol.ServerParticipantLeft{
		Type:     "participant_left",
		Identity: identity,
	})
	if empty && r.hub != nil {
		r.hub.remove(r.name, r)
	}
}

// PublishTrack records a published track and announces it.
func (r *Room) PublishTrack(identity string, track protocol.TrackInfo) {
	r.mu.Lock()
	p, ok := r.participants[identity]
	if ok {
		p.tracks[track.ID] = track
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	r.broadcast(identity, protocol.ServerTrackPublished{
		Type:     "track_published",
		Identity: identity,
		Track:    track,
	})
}

// UnpublishTrack removes a track and announces the removal.
func (r *Room) UnpublishTrack(identity, trackID string) {
	r.mu.Lock()
	p, ok := r.participants[identity]
	if ok {
		delete(p.tracks, trackID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	r.broadcast(identity, protocol.ServerTrackUnpublished{
		Type:     "track_unpublished",
		Identity: identity,
		TrackID:  trackID,
	})
}

// Data relays an opaque payload from one participant to all others.
func (r *Room) Data(from string, payload json.RawMessage) {
	if r.hub != nil && r.hub.metrics != nil {
		if t, ok := protocol.PayloadType(payload); ok {
			r.hub.metrics.RecordDataMessage(t)
		}
	}
	r.broadcast(from, protocol.ServerData{
		Type:    "data",
		From:    from,
		Payload: payload,
	})
}

// Participants returns the current roster.
func (r *Room) Participants() []protocol.ParticipantInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]protocol.ParticipantInfo, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p.info())
	}
	return out
}

// Has reports whether the identity is currently in the room.
func (r *Room) Has(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.participants[identity]
	return ok
}

func (r *Room) broadcast(exclude string, frame any) {
	r.mu.Lock()
	senders := make([]Sender, 0, len(r.participants))
	for id, p := range r.participants {
		if id == exclude || p.sender == nil {
			continue
		}
		senders = append(senders, p.sender)
	}
	r.mu.Unlock()

	for _, s := range senders {
		_ = s.Send(frame)
	}
}
