package room

import (
	"fmt"
	"math/rand"
	"testing"
)

func ids(ps []Participant) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ConnectionID)
	}
	return out
}

func TestGetOrCreateIsObservable(t *testing.T) {
	s := NewMemoryStore()
	r, created := s.GetOrCreate("r1")
	if !created || r.ID != "r1" {
		t.Fatalf("GetOrCreate=(%v,%v), want new room r1", r.ID, created)
	}
	if _, created := s.GetOrCreate("r1"); created {
		t.Fatalf("second GetOrCreate created a new room")
	}
	if !s.IsEmpty("r1") {
		t.Fatalf("IsEmpty=false for fresh room")
	}
	if got := s.Stats(); got.Rooms != 1 || got.Participants != 0 {
		t.Fatalf("Stats=%+v, want 1 room 0 participants", got)
	}
}

func TestAddIsIdempotentAndOverwrites(t *testing.T) {
	s := NewMemoryStore()
	s.Add("r1", NewParticipant("a", "Alice"))
	s.Add("r1", Participant{ConnectionID: "a", Name: "Alice2", CameraOn: false, MicOn: true})

	snap := s.Snapshot("r1", "")
	if len(snap) != 1 {
		t.Fatalf("len(snapshot)=%d, want 1", len(snap))
	}
	if snap[0].Name != "Alice2" || snap[0].CameraOn {
		t.Fatalf("snapshot[0]=%+v, want overwritten record", snap[0])
	}
	if got := s.Stats().Participants; got != 1 {
		t.Fatalf("participants=%d, want 1", got)
	}
}

func TestNewParticipantDefaultsMediaOn(t *testing.T) {
	p := NewParticipant("a", "Alice")
	if !p.CameraOn || !p.MicOn {
		t.Fatalf("NewParticipant=%+v, want camera and mic on", p)
	}
}

func TestRemoveMissingIsNotAFailure(t *testing.T) {
	s := NewMemoryStore()
	if _, ok := s.Remove("nope", "a"); ok {
		t.Fatalf("Remove on absent room reported ok")
	}
	s.Add("r1", NewParticipant("a", "Alice"))
	if _, ok := s.Remove("r1", "b"); ok {
		t.Fatalf("Remove of absent participant reported ok")
	}
	p, ok := s.Remove("r1", "a")
	if !ok || p.Name != "Alice" {
		t.Fatalf("Remove=(%+v,%v), want Alice", p, ok)
	}
	if _, ok := s.Remove("r1", "a"); ok {
		t.Fatalf("second Remove reported ok")
	}
}

func TestSnapshotExcludesAndCopies(t *testing.T) {
	s := NewMemoryStore()
	s.Add("r1", NewParticipant("a", "Alice"))
	s.Add("r1", NewParticipant("b", "Bob"))
	s.Add("r1", NewParticipant("c", "Carol"))

	snap := s.Snapshot("r1", "b")
	if got := ids(snap); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("snapshot ids=%v, want [a c]", got)
	}

	snap[0].Name = "mutated"
	s.SetCamera("r1", "a", false)
	if snap[0].CameraOn != true {
		t.Fatalf("snapshot observed a later mutation")
	}
	if s.Snapshot("r1", "")[0].Name != "Alice" {
		t.Fatalf("mutating a snapshot changed the store")
	}

	if got := s.Snapshot("missing", ""); got == nil || len(got) != 0 {
		t.Fatalf("Snapshot(missing)=%#v, want empty non-nil", got)
	}
}

func TestSetFlagsRequireMembership(t *testing.T) {
	s := NewMemoryStore()
	s.Add("r1", NewParticipant("a", "Alice"))

	if s.SetCamera("r2", "a", false) {
		t.Fatalf("SetCamera in wrong room reported ok")
	}
	if s.SetMic("r1", "b", false) {
		t.Fatalf("SetMic for non-member reported ok")
	}
	if !s.SetCamera("r1", "a", false) || !s.SetMic("r1", "a", false) {
		t.Fatalf("SetCamera/SetMic for member failed")
	}
	p := s.Snapshot("r1", "")[0]
	if p.CameraOn || p.MicOn {
		t.Fatalf("participant=%+v, want camera and mic off", p)
	}
}

func TestRemoveAndCleanupDeletesEmptyRoom(t *testing.T) {
	s := NewMemoryStore()
	s.Add("x", NewParticipant("a", "Alice"))
	s.Add("x", NewParticipant("b", "Bob"))

	if _, removed, deleted := s.RemoveAndCleanup("x", "a"); !removed || deleted {
		t.Fatalf("RemoveAndCleanup(a)=(%v,%v), want removed, not deleted", removed, deleted)
	}
	if _, removed, deleted := s.RemoveAndCleanup("x", "b"); !removed || !deleted {
		t.Fatalf("RemoveAndCleanup(b)=(%v,%v), want removed and deleted", removed, deleted)
	}
	if got := s.Stats(); got.Rooms != 0 || got.Participants != 0 {
		t.Fatalf("Stats=%+v, want empty store", got)
	}
	if _, removed, deleted := s.RemoveAndCleanup("x", "b"); removed || deleted {
		t.Fatalf("RemoveAndCleanup on deleted room=(%v,%v), want no-op", removed, deleted)
	}
}

func TestLocateRoomTracksMembership(t *testing.T) {
	s := NewMemoryStore()
	if _, ok := s.LocateRoom("a"); ok {
		t.Fatalf("LocateRoom found an unjoined connection")
	}
	s.Add("r1", NewParticipant("a", "Alice"))
	if roomID, ok := s.LocateRoom("a"); !ok || roomID != "r1" {
		t.Fatalf("LocateRoom=(%q,%v), want r1", roomID, ok)
	}

	// Adding to another room moves the connection.
	s.Add("r2", NewParticipant("a", "Alice"))
	if roomID, _ := s.LocateRoom("a"); roomID != "r2" {
		t.Fatalf("LocateRoom=%q, want r2", roomID)
	}
	if s.Has("r1", "a") {
		t.Fatalf("connection still a member of r1")
	}
	if got := s.Stats(); got.Rooms != 1 || got.Participants != 1 {
		t.Fatalf("Stats=%+v, want 1 room 1 participant", got)
	}

	s.Remove("r2", "a")
	if _, ok := s.LocateRoom("a"); ok {
		t.Fatalf("LocateRoom found a removed connection")
	}
}

func TestDeleteClearsIndex(t *testing.T) {
	s := NewMemoryStore()
	s.Add("r1", NewParticipant("a", "Alice"))
	s.Delete("r1")
	if _, ok := s.LocateRoom("a"); ok {
		t.Fatalf("LocateRoom found a member of a deleted room")
	}
	if s.index.Len() != 0 {
		t.Fatalf("index len=%d, want 0", s.index.Len())
	}
	s.Delete("r1")
}

func TestMembersInJoinOrder(t *testing.T) {
	s := NewMemoryStore()
	for _, id := range []string{"c", "a", "b"} {
		s.Add("r1", NewParticipant(id, id))
	}
	s.Remove("r1", "a")
	got := s.Members("r1")
	if len(got) != 2 || got[0] != "c" || got[1] != "b" {
		t.Fatalf("Members=%v, want [c b]", got)
	}
	if s.Members("missing") != nil {
		t.Fatalf("Members(missing) should be nil")
	}
}

// Random join/leave sequences must keep each room's size equal to the number
// of joined-and-not-left connections, and an empty room must be absent.
func TestMembershipCountMatchesModel(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := NewMemoryStore()
	model := make(map[string]map[string]bool)
	where := make(map[string]string)

	for step := 0; step < 5000; step++ {
		conn := fmt.Sprintf("c%d", rng.Intn(40))
		roomID := fmt.Sprintf("r%d", rng.Intn(5))

		if cur, ok := where[conn]; ok {
			s.RemoveAndCleanup(cur, conn)
			delete(model[cur], conn)
			delete(where, conn)
		} else {
			s.Add(roomID, NewParticipant(conn, conn))
			if model[roomID] == nil {
				model[roomID] = make(map[string]bool)
			}
			model[roomID][conn] = true
			where[conn] = roomID
		}

		total := 0
		for id, members := range model {
			total += len(members)
			got := len(s.Members(id))
			if got != len(members) {
				t.Fatalf("step %d: room %s has %d members, want %d", step, id, got, len(members))
			}
			if _, exists := s.rooms[id]; exists != (len(members) > 0) {
				t.Fatalf("step %d: room %s exists=%v with %d members", step, id, exists, len(members))
			}
		}
		if got := s.Stats().Participants; got != total {
			t.Fatalf("step %d: participants=%d, want %d", step, got, total)
		}
		if s.index.Len() != total {
			t.Fatalf("step %d: index len=%d, want %d", step, s.index.Len(), total)
		}
	}
}
