package archive

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/banshee-data/sillywalks/internal/config"
	"github.com/banshee-data/sillywalks/internal/monitoring"
	"github.com/banshee-data/sillywalks/internal/trace"
)

func init() {
	monitoring.SetLogger(nil)
}

func sampleRun(goal string) *Run {
	pos := trace.MustNew(
		trace.Point{X: 10, Y: 10},
		trace.Point{X: 12.5, Y: 10.25},
		trace.Point{X: 16, Y: 11},
		trace.Point{X: 20, Y: 13},
	)
	vel := pos.Diff()
	return &Run{
		Positions:    pos,
		Velocity:     vel,
		Acceleration: trace.Diff(vel),
		Attempts:     3,
		Config: Metadata{
			Goal:       goal,
			Origin:     "door",
			MapPath:    "maps/room.png",
			SeedX:      []float64{10, 20},
			SeedY:      []float64{10, 13},
			Generation: config.NewInterpolation(config.KindLinear, 2),
		},
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walks.db")
	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}

	a1, b1, a2 := sampleRun("kitchen"), sampleRun("bath"), sampleRun("kitchen")
	a2.Velocity, a2.Acceleration = nil, nil
	written := []*Run{a1, b1, a2}
	for i, rec := range written {
		idx, err := w.WriteRun(rec.Config.Goal, rec)
		if err != nil {
			t.Fatalf("WriteRun %d: %v", i, err)
		}
		if idx != i+1 || rec.Index != idx {
			t.Errorf("run %d got index %d (rec.Index %d), want %d", i, idx, rec.Index, i+1)
		}
	}
	if w.Runs() != 3 {
		t.Errorf("Runs() = %d, want 3", w.Runs())
	}

	img := image.NewGray(image.Rect(0, 0, 4, 3))
	img.SetGray(1, 2, color.Gray{Y: 255})
	if err := w.WriteImage(ImageOriginalFrame, img); err != nil {
		t.Fatal(err)
	}
	if err := w.SetComment("Simulation Nr. 0:\nGoal:kitchen"); err != nil {
		t.Fatal(err)
	}
	id := w.ArchiveID()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.ArchiveID() != id {
		t.Errorf("archive id = %s, want %s", r.ArchiveID(), id)
	}
	comment, err := r.Comment()
	if err != nil || comment != "Simulation Nr. 0:\nGoal:kitchen" {
		t.Errorf("Comment = %q, %v", comment, err)
	}

	labels, err := r.Labels()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"kitchen", "bath"}, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}

	kitchen, err := r.Runs("kitchen")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]*Run{a1, a2}, kitchen); diff != "" {
		t.Errorf("kitchen runs mismatch (-want +got):\n%s", diff)
	}
	if kitchen[1].Velocity != nil {
		t.Error("absent velocity read back as non-nil")
	}

	got, err := r.Run("bath", 2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(b1, got); diff != "" {
		t.Errorf("bath run mismatch (-want +got):\n%s", diff)
	}

	if _, err := r.Run("bath", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Run(bath, 1) err = %v, want ErrNotFound", err)
	}

	back, err := r.Image(ImageOriginalFrame)
	if err != nil {
		t.Fatal(err)
	}
	if back.Bounds() != img.Bounds() {
		t.Errorf("image bounds = %v, want %v", back.Bounds(), img.Bounds())
	}
	if g := color.GrayModel.Convert(back.At(1, 2)).(color.Gray); g.Y != 255 {
		t.Errorf("pixel (1,2) = %d, want 255", g.Y)
	}
	if _, err := r.Image(ImageOriginalGoals); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing image err = %v, want ErrNotFound", err)
	}
}

func TestRunIDsAreUnique(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "ids.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	seen := map[uuid.UUID]bool{}
	for i := 0; i < 5; i++ {
		rec := sampleRun("a")
		if _, err := w.WriteRun("a", rec); err != nil {
			t.Fatal(err)
		}
		if seen[rec.ID] {
			t.Fatalf("duplicate run id %s", rec.ID)
		}
		seen[rec.ID] = true
	}
}

func TestCreateReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walks.db")
	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.WriteRun("old", sampleRun("old")); err != nil {
		t.Fatal(err)
	}
	w.Close()

	w, err = Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w.Close()

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	labels, err := r.Labels()
	if err != nil || len(labels) != 0 {
		t.Errorf("Labels = %v, %v; want none", labels, err)
	}
}

func TestWriteRunRejects(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "bad.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if _, err := w.WriteRun("", sampleRun("x")); err == nil {
		t.Error("empty label accepted")
	}
	if _, err := w.WriteRun("x", &Run{}); err == nil {
		t.Error("empty positions accepted")
	}
	bad := sampleRun("x")
	bad.Config.Generation = config.Generation{}
	if _, err := w.WriteRun("x", bad); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("invalid configuration err = %v, want ErrInvalidConfig", err)
	}
	if w.Runs() != 0 {
		t.Errorf("Runs() = %d after rejected writes, want 0", w.Runs())
	}
}

func TestOpenRejects(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(filepath.Join(dir, "missing.db")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v, want ErrNotExist", err)
	}

	plain := filepath.Join(dir, "plain.db")
	if err := os.WriteFile(plain, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(plain); !errors.Is(err, ErrNotArchive) {
		t.Errorf("plain sqlite err = %v, want ErrNotArchive", err)
	}
}
