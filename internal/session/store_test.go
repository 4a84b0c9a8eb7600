package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"codesync/pkg/types"
)

func fileIDs(files []types.File) []string {
	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	return ids
}

func TestStore_EnsureRoomIdempotent(t *testing.T) {
	store := NewStore()

	store.EnsureRoom("r1")
	store.CreateFile("r1", types.File{ID: "f1", Name: "a.js"})
	store.EnsureRoom("r1")

	if got := len(store.ListFiles("r1")); got != 1 {
		t.Errorf("EnsureRoom must not reset an existing room, got %d files", got)
	}
}

func TestStore_ListFilesUnknownRoom(t *testing.T) {
	store := NewStore()

	files := store.ListFiles("missing")
	if files == nil {
		t.Fatal("ListFiles should return an empty slice, not nil")
	}
	if len(files) != 0 {
		t.Errorf("Expected no files, got %d", len(files))
	}
	if store.HasRoom("missing") {
		t.Error("ListFiles must not create the room")
	}
}

func TestStore_CreateFileAppendsAndCreatesRoom(t *testing.T) {
	store := NewStore()

	store.CreateFile("r1", types.File{ID: "f1", Name: "a.js"})
	store.CreateFile("r1", types.File{ID: "f2", Name: "b.py"})
	store.CreateFile("r1", types.File{ID: "f3", Name: "c.html"})

	got := fileIDs(store.ListFiles("r1"))
	want := []string{"f1", "f2", "f3"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Expected order %v, got %v", want, got)
	}
}

func TestStore_CreateFileDuplicateIDKeepsBoth(t *testing.T) {
	store := NewStore()

	store.CreateFile("r1", types.File{ID: "f1", Name: "first.js"})
	store.CreateFile("r1", types.File{ID: "f1", Name: "second.js"})

	files := store.ListFiles("r1")
	if len(files) != 2 {
		t.Fatalf("Duplicate IDs should produce two entries, got %d", len(files))
	}
	if files[0].Name != "first.js" || files[1].Name != "second.js" {
		t.Errorf("Unexpected entries: %+v", files)
	}
}

func TestStore_UpsertFileContent(t *testing.T) {
	store := NewStore()
	store.CreateFile("r1", types.File{ID: "f1", Name: "a.js", Content: "old"})
	store.CreateFile("r1", types.File{ID: "f2", Name: "b.js", Content: "keep"})

	if !store.UpsertFileContent("r1", "f1", "new") {
		t.Error("Expected update of existing file to report true")
	}

	files := store.ListFiles("r1")
	if files[0].ID != "f1" || files[0].Content != "new" {
		t.Errorf("Content should be replaced in place, got %+v", files[0])
	}
	if files[1].Content != "keep" {
		t.Errorf("Other files must be untouched, got %+v", files[1])
	}
}

func TestStore_UpsertFileContentDuplicateIDUpdatesFirstOnly(t *testing.T) {
	store := NewStore()
	store.CreateFile("r1", types.File{ID: "f1", Name: "first.js", Content: "one"})
	store.CreateFile("r1", types.File{ID: "f1", Name: "second.js", Content: "two"})

	if !store.UpsertFileContent("r1", "f1", "new") {
		t.Fatal("Expected update to report true")
	}

	files := store.ListFiles("r1")
	if files[0].Content != "new" {
		t.Errorf("First entry should be updated, got %+v", files[0])
	}
	if files[1].Content != "two" {
		t.Errorf("Later duplicate must keep its content, got %+v", files[1])
	}
}

func TestStore_UpsertFileContentUnknownIsNoop(t *testing.T) {
	store := NewStore()
	store.CreateFile("r1", types.File{ID: "f1", Content: "a"})

	if store.UpsertFileContent("r1", "ghost", "x") {
		t.Error("Unknown file should not be updated")
	}
	if store.UpsertFileContent("no-room", "f1", "x") {
		t.Error("Unknown room should not be updated")
	}

	if len(store.ListFiles("r1")) != 1 {
		t.Error("Content change for unknown file must not create it")
	}
	if store.HasRoom("no-room") {
		t.Error("Content change for unknown room must not create it")
	}
}

func TestStore_DeleteFileRemovesAllMatches(t *testing.T) {
	tests := []struct {
		name    string
		initial []string
		delete  string
		want    []string
	}{
		{"single", []string{"f1", "f2"}, "f1", []string{"f2"}},
		{"duplicates", []string{"f1", "f2", "f1", "f3", "f1"}, "f1", []string{"f2", "f3"}},
		{"no match", []string{"f1", "f2"}, "f9", []string{"f1", "f2"}},
		{"only entry", []string{"f1"}, "f1", []string{}},
		{"empty room", []string{}, "f1", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			store.EnsureRoom("r1")
			for _, id := range tt.initial {
				store.CreateFile("r1", types.File{ID: id})
			}

			store.DeleteFile("r1", tt.delete)

			got := fileIDs(store.ListFiles("r1"))
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			for _, id := range got {
				if id == tt.delete {
					t.Errorf("Deleted ID %s still present", tt.delete)
				}
			}
		})
	}

	// Unknown room is a no-op
	store := NewStore()
	store.DeleteFile("missing", "f1")
	if store.HasRoom("missing") {
		t.Error("DeleteFile must not create rooms")
	}
}

func TestStore_DeleteFileLeavesCursors(t *testing.T) {
	store := NewStore()
	store.CreateFile("r1", types.File{ID: "f1"})
	store.SetCursor("r1", "c1", "f1", json.RawMessage(`{"line":1}`), "ada")

	store.DeleteFile("r1", "f1")

	cursors := store.Cursors("r1")
	if c, exists := cursors["c1"]; !exists || c.FileID != "f1" {
		t.Errorf("Stale cursor should be kept after file deletion, got %+v", cursors)
	}
}

func TestStore_Cursors(t *testing.T) {
	store := NewStore()

	store.SetCursor("r1", "c1", "f1", json.RawMessage(`{"line":1,"ch":2}`), "ada")
	store.SetCursor("r1", "c1", "f2", json.RawMessage(`{"line":5,"ch":0}`), "ada")
	store.SetCursor("r1", "c2", "f1", json.RawMessage(`3`), "grace")

	cursors := store.Cursors("r1")
	if len(cursors) != 2 {
		t.Fatalf("Expected 2 cursors, got %d", len(cursors))
	}
	if cursors["c1"].FileID != "f2" || string(cursors["c1"].Position) != `{"line":5,"ch":0}` {
		t.Errorf("Last cursor update should win, got %+v", cursors["c1"])
	}

	// Snapshot is a copy
	delete(cursors, "c2")
	if len(store.Cursors("r1")) != 2 {
		t.Error("Mutating the snapshot must not affect the store")
	}

	store.RemoveCursor("r1", "c1")
	store.RemoveCursor("r1", "unknown")
	store.RemoveCursor("unknown-room", "c1")
	if _, exists := store.Cursors("r1")["c1"]; exists {
		t.Error("Cursor should be removed")
	}
}

func TestStore_ListFilesReturnsCopy(t *testing.T) {
	store := NewStore()
	store.CreateFile("r1", types.File{ID: "f1", Content: "a"})

	files := store.ListFiles("r1")
	files[0].Content = "mutated"

	if store.ListFiles("r1")[0].Content != "a" {
		t.Error("ListFiles must return a copy")
	}
}

func TestStore_IsEmptyAndEvict(t *testing.T) {
	store := NewStore()

	if !store.IsEmpty("r1") {
		t.Error("Unknown room should be empty")
	}

	store.EnsureRoom("r1")
	if !store.IsEmpty("r1") {
		t.Error("Fresh room should be empty")
	}

	store.CreateFile("r1", types.File{ID: "f1"})
	if store.IsEmpty("r1") {
		t.Error("Room with files should not be empty")
	}

	store.Evict("r1")
	if store.HasRoom("r1") {
		t.Error("Evicted room should be gone")
	}
	if len(store.ListFiles("r1")) != 0 {
		t.Error("Evicted room should have no files")
	}
}

func TestStore_RoomsAndStats(t *testing.T) {
	store := NewStore()
	store.EnsureRoom("b")
	store.CreateFile("a", types.File{ID: "f1"})
	store.SetCursor("a", "c1", "f1", nil, "ada")

	rooms := store.Rooms()
	if fmt.Sprint(rooms) != "[a b]" {
		t.Errorf("Expected sorted rooms [a b], got %v", rooms)
	}

	stats, exists := store.Stats("a")
	if !exists || stats.Files != 1 || stats.Cursors != 1 {
		t.Errorf("Unexpected stats %+v (exists=%v)", stats, exists)
	}
	if _, exists := store.Stats("zzz"); exists {
		t.Error("Stats for unknown room should report absent")
	}
}

func TestStore_RoomIsolation(t *testing.T) {
	store := NewStore()
	store.CreateFile("r1", types.File{ID: "f1", Content: "one"})
	store.CreateFile("r2", types.File{ID: "f1", Content: "two"})

	store.UpsertFileContent("r1", "f1", "changed")
	store.DeleteFile("r2", "f1")

	if store.ListFiles("r1")[0].Content != "changed" {
		t.Error("Room r1 should see its own update")
	}
	if len(store.ListFiles("r2")) != 0 {
		t.Error("Room r2 should see its own delete")
	}
}

func TestStore_ConcurrentMutation(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			roomID := fmt.Sprintf("room-%d", i%4)
			fileID := fmt.Sprintf("f%d", i)
			store.CreateFile(roomID, types.File{ID: fileID})
			store.UpsertFileContent(roomID, fileID, "x")
			store.SetCursor(roomID, fileID, fileID, nil, "u")
			store.ListFiles(roomID)
			store.Cursors(roomID)
		}(i)
	}
	wg.Wait()

	total := 0
	for _, roomID := range store.Rooms() {
		total += len(store.ListFiles(roomID))
	}
	if total != 20 {
		t.Errorf("Expected 20 files across rooms, got %d", total)
	}
}
