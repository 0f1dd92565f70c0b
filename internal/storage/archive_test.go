package storage

import (
	"bytes"
	"fmt"
	"testing"
)

func TestArchiveRoundTrip(t *testing.T) {
	db := testDB(t)

	raw := []byte(`{"bindings":{"SWIPE_DOWN":"window_minimize","SWIPE_UP":"window_maximize","SWIPE_LEFT":"tab_switch_left","SWIPE_RIGHT":"tab_switch_right","INDEX_ONLY":"tab_new","FIST":"tab_close","THUMBS_UP":"fullscreen_toggle","TWO_FISTS":"none","DOUBLE_THUMBS_UP":"none","HIGH_FIVE":"none","PALM":"none","PEACE":"none","OK":"none","POINTING_UP":"none","POINTING_DOWN":"none","WAVE":"none"},"actions":{},"gestures":{},"custom_gestures":{}}`)
	id, err := ArchiveConfig(db, "connection", raw)
	if err != nil {
		t.Fatalf("ArchiveConfig: %v", err)
	}

	got, err := GetArchive(db, id)
	if err != nil {
		t.Fatalf("GetArchive: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("round trip mismatch:\n got %s\nwant %s", got, raw)
	}

	entries, err := ListArchives(db, 10)
	if err != nil {
		t.Fatalf("ListArchives: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ListArchives returned %d entries, want 1", len(entries))
	}
	if entries[0].ID != id || entries[0].Source != "connection" {
		t.Errorf("entry = %+v", entries[0])
	}
	if entries[0].Size >= len(raw) {
		t.Errorf("stored blob (%d bytes) not smaller than input (%d bytes)", entries[0].Size, len(raw))
	}
}

func TestArchiveIncompressiblePayloadStoredRaw(t *testing.T) {
	db := testDB(t)

	// Too small for lz4 to shrink; CompressBlock reports such input with
	// n == 0 and the blob falls back to raw storage.
	raw := []byte(`{}`)
	blob, err := compressArchive(raw)
	if err != nil {
		t.Fatalf("compressArchive: %v", err)
	}
	if !bytes.HasPrefix(blob, archiveMagicRaw) {
		t.Errorf("blob magic = %q, want %q", blob[:4], archiveMagicRaw)
	}

	id, err := ArchiveConfig(db, "watchdog", raw)
	if err != nil {
		t.Fatalf("ArchiveConfig: %v", err)
	}
	got, err := GetArchive(db, id)
	if err != nil {
		t.Fatalf("GetArchive: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("round trip mismatch: got %s, want %s", got, raw)
	}
}

func TestArchivePrunes(t *testing.T) {
	db := testDB(t)

	// Repetitive payloads compress; vary them so ids differ meaningfully.
	for i := 0; i < archiveKeep+7; i++ {
		raw := []byte(fmt.Sprintf(`{"bindings":{"FIST":"tab_close"},"rev":%d,"pad":"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}`, i))
		if _, err := ArchiveConfig(db, "watchdog", raw); err != nil {
			t.Fatalf("ArchiveConfig #%d: %v", i, err)
		}
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM config_archive").Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != archiveKeep {
		t.Errorf("config_archive has %d rows after pruning, want %d", count, archiveKeep)
	}
}

func TestGetArchiveMissing(t *testing.T) {
	db := testDB(t)
	if _, err := GetArchive(db, "nope"); err == nil {
		t.Error("GetArchive on a missing id did not error")
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	if _, err := decompressArchive([]byte("short")); err == nil {
		t.Error("short blob accepted")
	}
	if _, err := decompressArchive([]byte("XXXX\x10\x00\x00\x00garbagegarbage")); err == nil {
		t.Error("bad magic accepted")
	}
}
