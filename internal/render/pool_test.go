package render

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func poolJobs(t *testing.T, n int) []Job {
	dir := t.TempDir()
	jobs := make([]Job, n)
	for i := range jobs {
		f := testFrame()
		f.Progress = float64(i) / float64(n)
		jobs[i] = Job{Frame: f, Path: filepath.Join(dir, fmt.Sprintf("frame_%04d.png", i))}
	}
	return jobs
}

// TestPoolWriteAll verifies every job produces a decodable PNG
func TestPoolWriteAll(t *testing.T) {
	tests := []struct {
		name  string
		start bool
	}{
		{"parallel", true},
		{"sequential fallback", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewPool(3, Options{Width: 64, Height: 48, Padding: 4}, testBounds())
			if tt.start {
				pool.Start()
				defer pool.Stop()
			}
			if pool.IsRunning() != tt.start {
				t.Fatalf("Expected running=%v", tt.start)
			}

			jobs := poolJobs(t, 7)
			if err := pool.WriteAll(jobs); err != nil {
				t.Fatalf("WriteAll failed: %v", err)
			}

			for _, job := range jobs {
				file, err := os.Open(job.Path)
				if err != nil {
					t.Fatalf("Missing output: %v", err)
				}
				img, err := png.Decode(file)
				file.Close()
				if err != nil {
					t.Fatalf("Invalid PNG %s: %v", job.Path, err)
				}
				if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
					t.Errorf("Expected 64x48, got %dx%d", b.Dx(), b.Dy())
				}
			}
		})
	}
}

// TestPoolWriteAllError verifies a failing job is reported
func TestPoolWriteAllError(t *testing.T) {
	pool := NewPool(2, Options{Width: 32, Height: 32}, testBounds())
	pool.Start()
	defer pool.Stop()

	jobs := poolJobs(t, 3)
	jobs[1].Path = filepath.Join(t.TempDir(), "missing", "frame.png")

	if err := pool.WriteAll(jobs); err == nil {
		t.Error("Expected an error for an unwritable path")
	}
}

// TestNewPoolWorkers verifies the worker count defaults and cap
func TestNewPoolWorkers(t *testing.T) {
	if got := NewPool(4, Options{}, testBounds()).Workers(); got != 4 {
		t.Errorf("Expected 4 workers, got %d", got)
	}
	if got := NewPool(0, Options{}, testBounds()).Workers(); got < 1 || got > 16 {
		t.Errorf("Expected default workers in [1, 16], got %d", got)
	}
	if got := NewPool(64, Options{}, testBounds()).Workers(); got != 16 {
		t.Errorf("Expected cap of 16, got %d", got)
	}

	pool := NewPool(1, Options{}, testBounds())
	pool.Stop()
	pool.Start()
	pool.Start()
	pool.Stop()
	pool.Stop()
	if pool.IsRunning() {
		t.Error("Expected pool to be stopped")
	}
}
