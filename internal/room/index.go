package room

// Index is the connection id -> room id reverse index. MemoryStore keeps it
// in step with every membership change so LocateRoom is a single map lookup
// instead of a scan over all rooms.
type Index struct {
	rooms map[string]string
}

func NewIndex() *Index {
	return &Index{rooms: make(map[string]string)}
}

// LocateRoom returns the room containing connID, if any.
func (x *Index) LocateRoom(connID string) (string, bool) {
	roomID, ok := x.rooms[connID]
	return roomID, ok
}

func (x *Index) set(connID, roomID string) {
	x.rooms[connID] = roomID
}

// clear drops connID only when it still points at roomID, so a stale removal
// never unindexes a newer membership.
func (x *Index) clear(connID, roomID string) {
	if x.rooms[connID] == roomID {
		delete(x.rooms, connID)
	}
}

func (x *Index) Len() int {
	return len(x.rooms)
}
