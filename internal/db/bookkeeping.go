package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/sillywalks/internal/config"
	"github.com/banshee-data/sillywalks/internal/fsutil"
	"github.com/banshee-data/sillywalks/internal/trace"
)

// ErrInvalidSimulation is returned by ValidateSimulation.
var ErrInvalidSimulation = errors.New("invalid simulation")

// Simulation is a stored simulation request.
type Simulation struct {
	ID        int64
	Trace     trace.Trace
	Length    int
	MapPath   string
	NRuns     int
	SigmaPre  float64
	SigmaPost float64
	// Specific holds the method-specific parameters; its Method is stored
	// as the simulation type.
	Specific  config.Generation
	CreatedAt time.Time
}

// AddTrace appends every point of tr to the trace table.
func (db *DB) AddTrace(tr trace.Trace) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO traces (x, y) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare trace insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < tr.Len(); i++ {
		p := tr.At(i)
		if !p.IsFinite() {
			return fmt.Errorf("%w: point %d is not finite", trace.ErrInvalidInput, i)
		}
		if _, err := stmt.Exec(p.X, p.Y); err != nil {
			return fmt.Errorf("failed to insert trace point %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// AddTracePoint appends a single point.
func (db *DB) AddTracePoint(x, y float64) error {
	return db.AddTrace(trace.MustNew(trace.Point{X: x, Y: y}))
}

// DumpTrace returns the stored trace in insertion order. An empty table
// yields an empty trace.
func (db *DB) DumpTrace() (trace.Trace, error) {
	rows, err := db.Query(`SELECT x, y FROM traces ORDER BY id`)
	if err != nil {
		return trace.Trace{}, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	var pts []trace.Point
	for rows.Next() {
		var p trace.Point
		if err := rows.Scan(&p.X, &p.Y); err != nil {
			return trace.Trace{}, fmt.Errorf("failed to scan trace point: %w", err)
		}
		pts = append(pts, p)
	}
	if err := rows.Err(); err != nil {
		return trace.Trace{}, err
	}
	if len(pts) == 0 {
		return trace.Trace{}, nil
	}
	return trace.New(pts)
}

// ClearTrace removes every stored point and restarts the ids.
func (db *DB) ClearTrace() error {
	if _, err := db.Exec(`DELETE FROM traces`); err != nil {
		return fmt.Errorf("failed to clear traces: %w", err)
	}
	if _, err := db.Exec(`DELETE FROM sqlite_sequence WHERE name = 'traces'`); err != nil {
		return fmt.Errorf("failed to reset trace ids: %w", err)
	}
	return nil
}

// ValidateSimulation checks that every field is present, the counts and
// noise levels are positive and the map exists on fsys.
func ValidateSimulation(fsys fsutil.FileSystem, sim *Simulation) error {
	if sim == nil {
		return fmt.Errorf("%w: nil simulation", ErrInvalidSimulation)
	}
	if sim.Trace.IsEmpty() {
		return fmt.Errorf("%w: trace is empty", ErrInvalidSimulation)
	}
	if sim.MapPath == "" {
		return fmt.Errorf("%w: map path is empty", ErrInvalidSimulation)
	}
	positive := []struct {
		name string
		v    float64
	}{
		{"length", float64(sim.Length)},
		{"n_runs", float64(sim.NRuns)},
		{"sigma_pre", sim.SigmaPre},
		{"sigma_post", sim.SigmaPost},
	}
	for _, p := range positive {
		if !(p.v > 0) {
			return fmt.Errorf("%w: %s must be > 0, got %v", ErrInvalidSimulation, p.name, p.v)
		}
	}
	if err := sim.Specific.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSimulation, err)
	}
	if !fsutil.Exists(fsys, sim.MapPath) {
		return fmt.Errorf("%w: map path %s does not exist", ErrInvalidSimulation, sim.MapPath)
	}
	return nil
}

// AddSimulation validates sim and stores it, setting sim.ID.
func (db *DB) AddSimulation(sim *Simulation) error {
	fsys := db.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if err := ValidateSimulation(fsys, sim); err != nil {
		return err
	}
	traceJSON, err := json.Marshal(sim.Trace.Points())
	if err != nil {
		return fmt.Errorf("failed to encode trace: %w", err)
	}
	specificJSON, err := json.Marshal(sim.Specific)
	if err != nil {
		return fmt.Errorf("failed to encode simulation parameters: %w", err)
	}

	res, err := db.Exec(`
		INSERT INTO simulations (
			trace_json, length, map_path, n_runs, sigma_pre, sigma_post,
			sim_type, specific_json, created_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(traceJSON), sim.Length, sim.MapPath, sim.NRuns, sim.SigmaPre, sim.SigmaPost,
		string(sim.Specific.Method), string(specificJSON), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert simulation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read simulation id: %w", err)
	}
	sim.ID = id
	return nil
}

// Simulations returns all stored simulations in insertion order.
func (db *DB) Simulations() ([]*Simulation, error) {
	rows, err := db.Query(`
		SELECT id, trace_json, length, map_path, n_runs, sigma_pre, sigma_post,
		       specific_json, created_unix
		FROM simulations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query simulations: %w", err)
	}
	defer rows.Close()

	var out []*Simulation
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sim)
	}
	return out, rows.Err()
}

func scanSimulation(rows *sql.Rows) (*Simulation, error) {
	var (
		sim          Simulation
		traceJSON    string
		specificJSON string
		created      int64
	)
	if err := rows.Scan(&sim.ID, &traceJSON, &sim.Length, &sim.MapPath, &sim.NRuns,
		&sim.SigmaPre, &sim.SigmaPost, &specificJSON, &created); err != nil {
		return nil, fmt.Errorf("failed to scan simulation: %w", err)
	}
	var pts []trace.Point
	if err := json.Unmarshal([]byte(traceJSON), &pts); err != nil {
		return nil, fmt.Errorf("simulation %d: failed to decode trace: %w", sim.ID, err)
	}
	tr, err := trace.New(pts)
	if err != nil {
		return nil, fmt.Errorf("simulation %d: %w", sim.ID, err)
	}
	sim.Trace = tr
	if err := json.Unmarshal([]byte(specificJSON), &sim.Specific); err != nil {
		return nil, fmt.Errorf("simulation %d: failed to decode parameters: %w", sim.ID, err)
	}
	sim.CreatedAt = time.Unix(created, 0)
	return &sim, nil
}
