// Package room holds call membership: which connections sit in which room,
// plus each participant's camera and mic flags.
//
// Nothing here locks. The signaling hub owns the store from a single
// goroutine; callers that share it across goroutines must serialize access.
package room

// Participant is one connection's presence in a room.
type Participant struct {
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
	CameraOn     bool   `json:"cameraOn"`
	MicOn        bool   `json:"micOn"`
}

// NewParticipant returns a participant with camera and mic on.
func NewParticipant(connID, name string) Participant {
	return Participant{
		ConnectionID: connID,
		Name:         name,
		CameraOn:     true,
		MicOn:        true,
	}
}

// Room is a named group of participants kept in join order.
type Room struct {
	ID      string
	members map[string]*Participant
	order   []string
}

func newRoom(id string) *Room {
	return &Room{ID: id, members: make(map[string]*Participant)}
}

func (r *Room) Len() int {
	return len(r.members)
}

func (r *Room) dropFromOrder(connID string) {
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// Stats is a point-in-time size of the store.
type Stats struct {
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`
}

// Store is the room registry used by the signaling hub.
type Store interface {
	GetOrCreate(roomID string) (r *Room, created bool)
	Add(roomID string, p Participant)
	Remove(roomID, connID string) (Participant, bool)
	IsEmpty(roomID string) bool
	Delete(roomID string)
	RemoveAndCleanup(roomID, connID string) (p Participant, removed bool, deleted bool)
	Snapshot(roomID, excluding string) []Participant
	Members(roomID string) []string
	Has(roomID, connID string) bool
	SetCamera(roomID, connID string, enabled bool) bool
	SetMic(roomID, connID string, enabled bool) bool
	LocateRoom(connID string) (string, bool)
	Stats() Stats
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	rooms map[string]*Room
	index *Index

	participants int
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*Room),
		index: NewIndex(),
	}
}

// GetOrCreate returns the room, creating an empty one if needed. A created
// room is visible to IsEmpty and Delete until something removes it.
func (s *MemoryStore) GetOrCreate(roomID string) (*Room, bool) {
	if r, ok := s.rooms[roomID]; ok {
		return r, false
	}
	r := newRoom(roomID)
	s.rooms[roomID] = r
	return r, true
}

// Add inserts p into roomID, overwriting any record with the same
// connection id without duplicating it in the roster. A connection indexed in
// a different room is moved so it is never a member of two rooms.
func (s *MemoryStore) Add(roomID string, p Participant) {
	if prev, ok := s.index.LocateRoom(p.ConnectionID); ok && prev != roomID {
		s.RemoveAndCleanup(prev, p.ConnectionID)
	}

	r, _ := s.GetOrCreate(roomID)
	if existing, ok := r.members[p.ConnectionID]; ok {
		*existing = p
		return
	}
	rec := p
	r.members[p.ConnectionID] = &rec
	r.order = append(r.order, p.ConnectionID)
	s.index.set(p.ConnectionID, roomID)
	s.participants++
}

// Remove deletes connID from roomID and returns the prior record. A missing
// room or participant reports false; that is an expected race, not an error.
func (s *MemoryStore) Remove(roomID, connID string) (Participant, bool) {
	r, ok := s.rooms[roomID]
	if !ok {
		return Participant{}, false
	}
	rec, ok := r.members[connID]
	if !ok {
		return Participant{}, false
	}
	delete(r.members, connID)
	r.dropFromOrder(connID)
	s.index.clear(connID, roomID)
	s.participants--
	return *rec, true
}

// IsEmpty reports true for rooms with no members, including absent rooms.
func (s *MemoryStore) IsEmpty(roomID string) bool {
	r, ok := s.rooms[roomID]
	return !ok || r.Len() == 0
}

func (s *MemoryStore) Delete(roomID string) {
	r, ok := s.rooms[roomID]
	if !ok {
		return
	}
	for _, connID := range r.order {
		s.index.clear(connID, roomID)
	}
	s.participants -= r.Len()
	delete(s.rooms, roomID)
}

// RemoveAndCleanup removes connID and deletes the room if that left it empty.
func (s *MemoryStore) RemoveAndCleanup(roomID, connID string) (Participant, bool, bool) {
	p, removed := s.Remove(roomID, connID)
	if _, exists := s.rooms[roomID]; exists && s.IsEmpty(roomID) {
		s.Delete(roomID)
		return p, removed, true
	}
	return p, removed, false
}

// Snapshot copies the roster in join order, skipping excluding. The result is
// never nil so it encodes as a JSON array.
func (s *MemoryStore) Snapshot(roomID, excluding string) []Participant {
	out := []Participant{}
	r, ok := s.rooms[roomID]
	if !ok {
		return out
	}
	for _, connID := range r.order {
		if connID == excluding {
			continue
		}
		out = append(out, *r.members[connID])
	}
	return out
}

// Members returns member connection ids in join order.
func (s *MemoryStore) Members(roomID string) []string {
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	return append([]string(nil), r.order...)
}

func (s *MemoryStore) Has(roomID, connID string) bool {
	r, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	_, ok = r.members[connID]
	return ok
}

func (s *MemoryStore) SetCamera(roomID, connID string, enabled bool) bool {
	rec := s.lookup(roomID, connID)
	if rec == nil {
		return false
	}
	rec.CameraOn = enabled
	return true
}

func (s *MemoryStore) SetMic(roomID, connID string, enabled bool) bool {
	rec := s.lookup(roomID, connID)
	if rec == nil {
		return false
	}
	rec.MicOn = enabled
	return true
}

func (s *MemoryStore) LocateRoom(connID string) (string, bool) {
	return s.index.LocateRoom(connID)
}

func (s *MemoryStore) Stats() Stats {
	return Stats{Rooms: len(s.rooms), Participants: s.participants}
}

func (s *MemoryStore) lookup(roomID, connID string) *Participant {
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	return r.members[connID]
}
