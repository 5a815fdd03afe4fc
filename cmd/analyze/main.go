// =============================================================================
// CHASE REPLAY - ANALYZE
// =============================================================================
// Offline companion of the replay server. For one game directory it:
//   - prints the running phase and the catch timeline, next to the first
//     HUNTER report of every player
//   - writes interesting_timestamps.json (close chaser/runner encounters),
//     which the server reads to drive slow motion
//   - writes tracks.geojson with one line per participant
//   - optionally renders evenly spaced PNG frames
//
// USAGE:
//   go run ./cmd/analyze -data data/hackaburg-campuswiese -frames 20
// =============================================================================
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"chase-replay/internal/analysis"
	"chase-replay/internal/config"
	"chase-replay/internal/feed"
	"chase-replay/internal/render"
	"chase-replay/internal/replay"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	cfgPath := config.Path()
	appConfig, err := config.LoadFile(cfgPath)
	if err != nil {
		log.Fatalf("❌ Invalid configuration in %s: %v", cfgPath, err)
	}

	dataDir := flag.String("data", appConfig.Data.Dir, "game directory with the exported logs")
	outDir := flag.String("out", "", "output directory (defaults to the game directory)")
	meters := flag.Float64("meters", appConfig.Analysis.ProximityMeters, "chaser/runner distance that counts as an encounter")
	step := flag.Duration("step", appConfig.Analysis.ResampleStep, "resampling step")
	frames := flag.Int("frames", 0, "number of PNG frames to render")
	flag.Parse()

	dataCfg := appConfig.Data
	dataCfg.Dir = *dataDir
	// existing ranges are output here, never input
	dataCfg.InterestingFile = ""
	if *outDir == "" {
		*outDir = *dataDir
	}

	session, err := feed.LoadSession(dataCfg, replay.Options{
		PingInterval: appConfig.Playback.PingInterval,
		TailStep:     appConfig.Playback.TailStep,
		TailCount:    appConfig.Playback.TailCount,
		MarkerSize:   appConfig.Playback.MarkerSize,

		CatchTolerance: appConfig.Playback.CatchTolerance,
	})
	if err != nil {
		log.Fatalf("❌ Failed to load game from %s: %v", *dataDir, err)
	}

	printSummary(session)

	ranges, err := findRanges(session, *step, *meters)
	if err != nil {
		log.Fatalf("❌ Analysis failed: %v", err)
	}
	rangesName := appConfig.Data.InterestingFile
	if rangesName == "" {
		rangesName = config.DefaultData().InterestingFile
	}
	rangesPath := filepath.Join(*outDir, rangesName)
	if err := feed.WriteInteresting(rangesPath, ranges); err != nil {
		log.Fatalf("❌ Failed to write %s: %v", rangesPath, err)
	}
	log.Printf("✅ %d interesting ranges written to %s", len(ranges), rangesPath)

	tracksPath := filepath.Join(*outDir, "tracks.geojson")
	data, err := analysis.ExportGeoJSON(session).MarshalJSON()
	if err == nil {
		err = os.WriteFile(tracksPath, data, 0644)
	}
	if err != nil {
		log.Fatalf("❌ Failed to write %s: %v", tracksPath, err)
	}
	log.Printf("✅ Tracks written to %s", tracksPath)

	if *frames > 0 {
		if err := renderFrames(session, appConfig.Render, *outDir, *frames); err != nil {
			log.Fatalf("❌ Frame export failed: %v", err)
		}
	}
}

func printSummary(s *replay.Session) {
	fmt.Printf("Session %s: %d participants, %s to %s\n", s.ID, len(s.IDs),
		formatTime(s.Bounds.MinTime), formatTime(s.Bounds.MaxTime))

	if start, end, ok := s.Bounds.RunningInterval(); ok {
		fmt.Printf("Running: %s to %s (%s)\n", formatTime(start), formatTime(end),
			time.Duration(end-start)*time.Millisecond)
	} else {
		fmt.Println("Running: incomplete (no RUNNING or no OVER report)")
	}

	if s.SeedHunter != "" {
		fmt.Printf("Seed hunter: %s\n", s.Name(s.SeedHunter))
	}
	for _, c := range s.Captures {
		fmt.Printf("  %s  %s caught %s\n", formatTime(c.Timestamp), s.Name(c.HunterID), s.Name(c.RunawayID))
	}
	printHunters(s)
	fmt.Printf("Pings: %d\n", len(s.Pings))
	for _, w := range s.Warnings {
		fmt.Printf("Warning: %v\n", w)
	}
}

// printHunters lists when each participant first reported as hunter next to
// its catch time. Feeds without team_role print nothing.
func printHunters(s *replay.Session) {
	since := analysis.HunterSince(s.Tracks)
	if len(since) == 0 {
		return
	}

	ids := make([]string, 0, len(since))
	for id := range since {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if since[ids[i]] != since[ids[j]] {
			return since[ids[i]] < since[ids[j]]
		}
		return ids[i] < ids[j]
	})

	fmt.Println("Hunters by first report:")
	for _, id := range ids {
		caught := "not caught"
		if at, ok := s.Timeline.CatchTime(id); ok {
			caught = "caught " + formatTime(at)
		}
		fmt.Printf("  %s  %s (%s)\n", formatTime(since[id]), s.Name(id), caught)
	}
}

func findRanges(s *replay.Session, step time.Duration, meters float64) ([]replay.TimeRange, error) {
	grid, err := analysis.Resample(s.Tracks, step)
	if err != nil {
		return nil, err
	}

	opts := analysis.ProximityOptions{Meters: meters}
	if start, end, ok := analysis.RunningInterval(s.Tracks); ok {
		opts.Running = replay.TimeRange{Start: start, End: end}
		opts.HasRunning = true
	}
	return analysis.FindInterestingRanges(grid, s.Timeline, opts), nil
}

func renderFrames(s *replay.Session, cfg config.RenderConfig, outDir string, n int) error {
	dir := filepath.Join(outDir, "frames")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	span := s.Bounds.Duration()
	jobs := make([]render.Job, n)
	for i := range jobs {
		t := s.Bounds.MinTime
		if n > 1 {
			t += span * int64(i) / int64(n-1)
		}
		f := s.Frame(t)
		if span > 0 {
			f.Progress = float64(t-s.Bounds.MinTime) / float64(span)
		}
		jobs[i] = render.Job{Frame: f, Path: filepath.Join(dir, fmt.Sprintf("frame_%04d.png", i))}
	}

	pool := render.NewPool(0, render.Options{Width: cfg.Width, Height: cfg.Height, Padding: cfg.Padding}, s.Bounds)
	pool.Start()
	defer pool.Stop()

	start := time.Now()
	if err := pool.WriteAll(jobs); err != nil {
		return err
	}
	log.Printf("🖼️ %d frames written to %s in %s (%d workers)", n, dir, time.Since(start).Round(time.Millisecond), pool.Workers())
	return nil
}

func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
