// Package archive stores batches of generated walks in a single SQLite
// file. Runs are grouped by goal label and numbered with an index that
// increases across the whole archive, starting at 1. Each run carries its
// positions, optional velocity and acceleration, and the job configuration
// that produced it. Reference images and a free-text comment are stored
// alongside.
package archive

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sillywalks/internal/config"
	"github.com/banshee-data/sillywalks/internal/trace"
)

// Group types recorded for trajectory and image records.
const (
	GroupTrajectory = "Trajectory"
	GroupImages     = "Images"
)

// Names under which the reference map is stored.
const (
	ImageOriginalFrame = "OriginalFrame"
	ImageOriginalGoals = "OriginalGoals"
)

// Type is the value of the archive's type metadata.
const Type = "SillyWalks"

var (
	// ErrNotArchive is returned by Open for files without archive metadata.
	ErrNotArchive = errors.New("not a trajectory archive")

	// ErrNotFound is returned for missing runs and images.
	ErrNotFound = errors.New("not found in archive")
)

//go:embed migrations/*.sql
var migrationsEmbed embed.FS

func migrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsEmbed, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations missing: %v", err))
	}
	return sub
}

// Metadata is the job configuration attached to each run.
type Metadata struct {
	Goal       string            `json:"goal"`
	Origin     string            `json:"origin,omitempty"`
	MapPath    string            `json:"map_path"`
	SeedX      []float64         `json:"x"`
	SeedY      []float64         `json:"y"`
	Generation config.Generation `json:"generation"`
}

// Run is one accepted walk.
type Run struct {
	ID    uuid.UUID
	Label string
	// Index is assigned by the Writer.
	Index int

	Positions    trace.Trace
	Velocity     []trace.Vec
	Acceleration []trace.Vec

	Config     Metadata
	Attempts   int
	PathLength float64
	CreatedAt  time.Time
}
