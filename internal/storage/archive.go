package storage

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
)

// Archive blob layout: 4-byte magic + 4-byte LE uint32 uncompressed size +
// payload. Magic "gz4l" marks an lz4 block, "gz4r" a payload stored raw
// because lz4 could not shrink it.
var (
	archiveMagicLZ4 = []byte("gz4l")
	archiveMagicRaw = []byte("gz4r")
)

const archiveHeaderSize = 8

// archiveKeep bounds the config_archive table; the oldest rows beyond this
// are pruned on every insert.
const archiveKeep = 50

// ArchiveEntry is the metadata for one stored config snapshot.
type ArchiveEntry struct {
	ID      string    `json:"id"`
	TakenAt time.Time `json:"taken_at"`
	Source  string    `json:"source"`
	Size    int       `json:"size"` // compressed bytes
}

func compressArchive(raw []byte) ([]byte, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, buf, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}

	// CompressBlock returns 0 for input it cannot shrink; tiny snapshots
	// land here. Those are stored raw under their own magic.
	magic, payload := archiveMagicLZ4, buf[:n]
	if n == 0 {
		magic, payload = archiveMagicRaw, raw
	}

	out := make([]byte, 0, archiveHeaderSize+len(payload))
	out = append(out, magic...)
	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, uint32(len(raw)))
	out = append(out, sizeBuf...)
	out = append(out, payload...)
	return out, nil
}

func decompressArchive(data []byte) ([]byte, error) {
	if len(data) < archiveHeaderSize {
		return nil, fmt.Errorf("archive blob too short (%d bytes)", len(data))
	}
	magic := data[:4]
	size := binary.LittleEndian.Uint32(data[4:archiveHeaderSize])

	switch {
	case bytes.Equal(magic, archiveMagicRaw):
		if int(size) != len(data)-archiveHeaderSize {
			return nil, fmt.Errorf("archive blob: size header %d does not match payload", size)
		}
		return append([]byte(nil), data[archiveHeaderSize:]...), nil
	case bytes.Equal(magic, archiveMagicLZ4):
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(data[archiveHeaderSize:], dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return dst[:n], nil
	default:
		return nil, fmt.Errorf("archive blob: invalid magic")
	}
}

// ArchiveConfig stores one raw config snapshot compressed, tagged with its
// source ("connection" or "watchdog"), and prunes rows beyond the retention
// bound. Returns the new row's id.
func ArchiveConfig(db *sql.DB, source string, raw []byte) (string, error) {
	blob, err := compressArchive(raw)
	if err != nil {
		return "", fmt.Errorf("compress snapshot: %w", err)
	}

	id := uuid.NewString()
	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO config_archive (id, source, raw) VALUES (?, ?, ?)",
		id, source, blob,
	); err != nil {
		return "", fmt.Errorf("insert archive row: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM config_archive WHERE id NOT IN (
		SELECT id FROM config_archive ORDER BY taken_at DESC, id DESC LIMIT ?
	)`, archiveKeep); err != nil {
		return "", fmt.Errorf("prune archive: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return id, nil
}

// ListArchives returns archive metadata, newest first.
func ListArchives(db *sql.DB, limit int) ([]ArchiveEntry, error) {
	if limit <= 0 || limit > archiveKeep {
		limit = archiveKeep
	}
	rows, err := db.Query(
		"SELECT id, taken_at, source, LENGTH(raw) FROM config_archive ORDER BY taken_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var result []ArchiveEntry
	for rows.Next() {
		var e ArchiveEntry
		if err := rows.Scan(&e.ID, &e.TakenAt, &e.Source, &e.Size); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// GetArchive loads and decompresses one archived snapshot by id.
func GetArchive(db *sql.DB, id string) ([]byte, error) {
	var blob []byte
	err := db.QueryRow("SELECT raw FROM config_archive WHERE id = ?", id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("archive %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	return decompressArchive(blob)
}
