package archive

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sillywalks/internal/db"
	"github.com/banshee-data/sillywalks/internal/trace"
)

// Reader reads a closed archive.
type Reader struct {
	db *sql.DB
	id uuid.UUID
}

// Open opens the archive at path. The file must exist and carry archive
// metadata.
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	sqlDB, err := db.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{db: sqlDB}
	raw, err := r.meta("archive_id")
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrNotArchive, path, err)
	}
	if r.id, err = uuid.Parse(raw); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: %s: bad archive id: %v", ErrNotArchive, path, err)
	}
	return r, nil
}

// Close closes the archive.
func (r *Reader) Close() error { return r.db.Close() }

// ArchiveID returns the identifier assigned at creation.
func (r *Reader) ArchiveID() uuid.UUID { return r.id }

// Comment returns the archive comment.
func (r *Reader) Comment() (string, error) { return r.meta("comment") }

// Labels returns the goal labels in the order they were first written.
func (r *Reader) Labels() ([]string, error) {
	rows, err := r.db.Query(`SELECT label FROM trajectory_groups ORDER BY created_unix_nanos, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

const runColumns = `run_id, label, run_index, positions_json, velocity_json, acceleration_json,
	config_json, attempts, path_length, created_unix_nanos`

// Runs returns every run stored under label, ordered by run index.
func (r *Reader) Runs(label string) ([]*Run, error) {
	rows, err := r.db.Query(`SELECT `+runColumns+` FROM trajectory_runs WHERE label = ? ORDER BY run_index`, label)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs for %s: %w", label, err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Run returns the run stored under label with the given index.
func (r *Reader) Run(label string, index int) (*Run, error) {
	rows, err := r.db.Query(`SELECT `+runColumns+` FROM trajectory_runs WHERE label = ? AND run_index = ?`, label, index)
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s/%d: %w", label, index, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: run %s/%d", ErrNotFound, label, index)
	}
	return scanRun(rows)
}

// Image returns the decoded image stored under name.
func (r *Reader) Image(name string) (image.Image, error) {
	var data []byte
	err := r.db.QueryRow(`SELECT data FROM images WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: image %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", name, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", name, err)
	}
	return img, nil
}

func (r *Reader) meta(key string) (string, error) {
	var v string
	if err := r.db.QueryRow(`SELECT value FROM archive_meta WHERE key = ?`, key).Scan(&v); err != nil {
		return "", fmt.Errorf("failed to read archive %s: %w", key, err)
	}
	return v, nil
}

func scanRun(rows *sql.Rows) (*Run, error) {
	var (
		run                    Run
		id, positions, cfg     string
		velocity, acceleration sql.NullString
		created                int64
	)
	if err := rows.Scan(&id, &run.Label, &run.Index, &positions, &velocity, &acceleration,
		&cfg, &run.Attempts, &run.PathLength, &created); err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("run %s/%d: bad id: %w", run.Label, run.Index, err)
	}

	var pts []trace.Point
	if err := json.Unmarshal([]byte(positions), &pts); err != nil {
		return nil, fmt.Errorf("run %s/%d: failed to decode positions: %w", run.Label, run.Index, err)
	}
	if run.Positions, err = trace.New(pts); err != nil {
		return nil, fmt.Errorf("run %s/%d: %w", run.Label, run.Index, err)
	}
	if run.Velocity, err = decodeOptional(velocity); err != nil {
		return nil, fmt.Errorf("run %s/%d: failed to decode velocity: %w", run.Label, run.Index, err)
	}
	if run.Acceleration, err = decodeOptional(acceleration); err != nil {
		return nil, fmt.Errorf("run %s/%d: failed to decode acceleration: %w", run.Label, run.Index, err)
	}
	if err := json.Unmarshal([]byte(cfg), &run.Config); err != nil {
		return nil, fmt.Errorf("run %s/%d: failed to decode configuration: %w", run.Label, run.Index, err)
	}
	run.CreatedAt = time.Unix(0, created)
	return &run, nil
}

func decodeOptional(s sql.NullString) ([]trace.Vec, error) {
	if !s.Valid {
		return nil, nil
	}
	v := []trace.Vec{}
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return nil, err
	}
	return v, nil
}
