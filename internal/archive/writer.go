package archive

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sillywalks/internal/db"
	"github.com/banshee-data/sillywalks/internal/monitoring"
	"github.com/banshee-data/sillywalks/internal/trace"
)

// Writer appends runs to an archive. It is not safe for concurrent use;
// one goroutine owns it for the life of a batch.
type Writer struct {
	db        *sql.DB
	path      string
	id        uuid.UUID
	nextIndex int
	groups    map[string]bool
}

// Create creates a new archive at path, replacing any existing file.
func Create(path string) (*Writer, error) {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove existing archive %s: %w", p, err)
		}
	}
	sqlDB, err := db.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(sqlDB, migrationsFS()); err != nil {
		sqlDB.Close()
		return nil, err
	}

	w := &Writer{db: sqlDB, path: path, id: uuid.New(), nextIndex: 1, groups: map[string]bool{}}
	meta := map[string]string{"archive_id": w.id.String(), "type": Type, "comment": ""}
	for k, v := range meta {
		if err := w.setMeta(k, v); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}
	monitoring.Logf("archive %s created at %s", w.id, path)
	return w, nil
}

// ArchiveID returns the archive's identifier.
func (w *Writer) ArchiveID() uuid.UUID { return w.id }

// WriteRun stores rec under label with the next run index and returns that
// index. rec.ID, rec.Label, rec.Index and (when zero) rec.CreatedAt and
// rec.PathLength are filled in.
func (w *Writer) WriteRun(label string, rec *Run) (int, error) {
	if label == "" {
		return 0, fmt.Errorf("failed to write run: empty label")
	}
	if rec == nil || rec.Positions.IsEmpty() {
		return 0, fmt.Errorf("failed to write run: no positions")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.PathLength == 0 {
		rec.PathLength = rec.Positions.Length()
	}

	positions, err := json.Marshal(rec.Positions.Points())
	if err != nil {
		return 0, fmt.Errorf("failed to encode positions: %w", err)
	}
	velocity, err := encodeOptional(rec.Velocity)
	if err != nil {
		return 0, fmt.Errorf("failed to encode velocity: %w", err)
	}
	acceleration, err := encodeOptional(rec.Acceleration)
	if err != nil {
		return 0, fmt.Errorf("failed to encode acceleration: %w", err)
	}
	cfg, err := json.Marshal(rec.Config)
	if err != nil {
		return 0, fmt.Errorf("failed to encode run configuration: %w", err)
	}

	tx, err := w.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if !w.groups[label] {
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO trajectory_groups (label, group_type, created_unix_nanos)
			VALUES (?, ?, ?)`, label, GroupTrajectory, time.Now().UnixNano()); err != nil {
			return 0, fmt.Errorf("failed to create group %s: %w", label, err)
		}
	}

	id := uuid.New()
	index := w.nextIndex
	if _, err := tx.Exec(`
		INSERT INTO trajectory_runs (
			run_id, label, run_index, positions_json, velocity_json, acceleration_json,
			config_json, attempts, path_length, created_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), label, index, string(positions), velocity, acceleration,
		string(cfg), rec.Attempts, rec.PathLength, rec.CreatedAt.UnixNano(),
	); err != nil {
		return 0, fmt.Errorf("failed to insert run %d: %w", index, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run %d: %w", index, err)
	}

	w.groups[label] = true
	w.nextIndex++
	rec.ID, rec.Label, rec.Index = id, label, index
	return index, nil
}

// WriteImage stores img as PNG under name.
func (w *Writer) WriteImage(name string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode image %s: %w", name, err)
	}
	b := img.Bounds()
	if _, err := w.db.Exec(`
		INSERT OR REPLACE INTO images (name, group_type, width, height, format, data)
		VALUES (?, ?, ?, ?, ?, ?)`,
		name, GroupImages, b.Dx(), b.Dy(), "png", buf.Bytes()); err != nil {
		return fmt.Errorf("failed to store image %s: %w", name, err)
	}
	return nil
}

// SetComment replaces the archive comment.
func (w *Writer) SetComment(comment string) error {
	return w.setMeta("comment", comment)
}

// Runs returns the number of runs written so far.
func (w *Writer) Runs() int { return w.nextIndex - 1 }

// Close checkpoints the write-ahead log into the archive file and closes it.
func (w *Writer) Close() error {
	if _, err := w.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		monitoring.Logf("archive %s: checkpoint failed: %v", w.path, err)
	}
	return w.db.Close()
}

func (w *Writer) setMeta(key, value string) error {
	if _, err := w.db.Exec(`INSERT OR REPLACE INTO archive_meta (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("failed to set archive %s: %w", key, err)
	}
	return nil
}

// encodeOptional returns nil for a nil slice so the column stays NULL.
func encodeOptional(v []trace.Vec) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
