package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"chase-replay/internal/config"
	"chase-replay/internal/replay"
)

// ParseStatusUpdates decodes the location feed
func ParseStatusUpdates(r io.Reader, file string) ([]replay.RawEntry, error) {
	var records []statusRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("feed: decode %s: %w", file, err)
	}
	if len(records) == 0 {
		return nil, &replay.EmptyInputError{Source: file}
	}

	entries := make([]replay.RawEntry, 0, len(records))
	for i, rec := range records {
		if err := validate.Struct(rec); err != nil {
			return nil, &RecordError{File: file, Index: i, Err: err}
		}
		entry, err := rec.entry()
		if err != nil {
			return nil, &RecordError{File: file, Index: i, Err: err}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ParseCaptures decodes the capture log, keeping log order
func ParseCaptures(r io.Reader, file string) ([]replay.CaptureEvent, error) {
	var records []caughtRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("feed: decode %s: %w", file, err)
	}

	events := make([]replay.CaptureEvent, 0, len(records))
	for i, rec := range records {
		if err := validate.Struct(rec); err != nil {
			return nil, &RecordError{File: file, Index: i, Err: err}
		}
		ev, err := rec.event()
		if err != nil {
			return nil, &RecordError{File: file, Index: i, Err: err}
		}
		events = append(events, ev)
	}
	return events, nil
}

// ParseNames decodes the id to display label mapping
func ParseNames(r io.Reader, file string) (map[string]string, error) {
	names := make(map[string]string)
	if err := json.NewDecoder(r).Decode(&names); err != nil {
		return nil, fmt.Errorf("feed: decode %s: %w", file, err)
	}
	return names, nil
}

// ParseInteresting decodes slow-motion ranges
func ParseInteresting(r io.Reader, file string) ([]replay.TimeRange, error) {
	var records []rangeRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("feed: decode %s: %w", file, err)
	}

	ranges := make([]replay.TimeRange, 0, len(records))
	for i, rec := range records {
		if err := validate.Struct(rec); err != nil {
			return nil, &RecordError{File: file, Index: i, Err: err}
		}
		ranges = append(ranges, replay.TimeRange{Start: rec.Start, End: rec.End})
	}
	return ranges, nil
}

// WriteInteresting stores ranges in the format ParseInteresting reads
func WriteInteresting(path string, ranges []replay.TimeRange) error {
	records := make([]rangeRecord, len(ranges))
	for i, r := range ranges {
		records[i] = rangeRecord{Start: r.Start, End: r.End}
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Load reads all feed files of a game directory. The interesting ranges file
// is optional; the others are required.
func Load(cfg config.DataConfig) (replay.SessionInput, error) {
	var in replay.SessionInput

	err := readFile(cfg.Dir, cfg.StatusFile, func(r io.Reader) (err error) {
		in.Entries, err = ParseStatusUpdates(r, cfg.StatusFile)
		return err
	})
	if err != nil {
		return in, err
	}

	err = readFile(cfg.Dir, cfg.CaughtFile, func(r io.Reader) (err error) {
		in.Captures, err = ParseCaptures(r, cfg.CaughtFile)
		return err
	})
	if err != nil {
		return in, err
	}

	err = readFile(cfg.Dir, cfg.NamesFile, func(r io.Reader) (err error) {
		in.Names, err = ParseNames(r, cfg.NamesFile)
		return err
	})
	if err != nil {
		return in, err
	}

	if cfg.InterestingFile != "" {
		err = readFile(cfg.Dir, cfg.InterestingFile, func(r io.Reader) (err error) {
			in.Interesting, err = ParseInteresting(r, cfg.InterestingFile)
			return err
		})
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Printf("ℹ️ No %s, slow motion disabled for this game", cfg.InterestingFile)
		case err != nil:
			return in, err
		}
	}

	log.Printf("📂 Loaded %s: %d fixes, %d captures, %d names, %d interesting ranges",
		cfg.Dir, len(in.Entries), len(in.Captures), len(in.Names), len(in.Interesting))
	return in, nil
}

// LoadSession reads a game directory and builds its session, logging every
// recovered load problem.
func LoadSession(cfg config.DataConfig, opts replay.Options) (*replay.Session, error) {
	in, err := Load(cfg)
	if err != nil {
		return nil, err
	}
	s, err := replay.NewSession(in, opts)
	if err != nil {
		return nil, err
	}
	for _, w := range s.Warnings {
		log.Printf("⚠️ %v", w)
	}
	return s, nil
}

func readFile(dir, name string, parse func(io.Reader) error) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	return parse(f)
}
