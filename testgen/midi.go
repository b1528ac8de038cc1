// Package testgen builds grid-search fixtures from MIDI files: two channels
// whose note onsets coincide are rendered separately, each with a range of
// timing jitters, so that synchronized and unsynchronized pairs share the
// same musical material.
package testgen

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gitlab.com/gomidi/midi/v2/smf"
)

var (
	// ErrNoTempo is returned for MIDI files without a tempo meta event.
	ErrNoTempo = errors.New("no tempo event found")
	// ErrNoChannels is returned when no two channels share an onset in the window.
	ErrNoChannels = errors.New("no channel pair with coinciding onsets")
	// ErrNoNotes is returned when a channel has no note events in the window.
	ErrNoNotes = errors.New("no note events in window")
)

// Source is a parsed MIDI file with its first tempo resolved.
type Source struct {
	file       *smf.SMF
	resolution uint16
	bpm        float64
	tempo      smf.Message
	tempoCount int
}

// Load reads and parses a MIDI file.
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read midi file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse reads a standard MIDI file with metric time.
func Parse(r io.Reader) (src *Source, err error) {
	// the smf reader panics on some malformed input
	defer func() {
		if p := recover(); p != nil {
			src, err = nil, fmt.Errorf("parse midi: %v", p)
		}
	}()

	file, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("parse midi: %w", err)
	}

	ticks, ok := file.TimeFormat.(smf.MetricTicks)
	if !ok || ticks.Resolution() == 0 {
		return nil, fmt.Errorf("parse midi: unsupported time format %v", file.TimeFormat)
	}

	src = &Source{file: file, resolution: ticks.Resolution()}
	for _, track := range file.Tracks {
		for _, ev := range track {
			var bpm float64
			if !ev.Message.GetMetaTempo(&bpm) {
				continue
			}
			if src.tempoCount == 0 {
				src.bpm = bpm
				src.tempo = ev.Message
			}
			src.tempoCount++
		}
	}
	if src.tempoCount == 0 {
		return nil, ErrNoTempo
	}
	return src, nil
}

// BPM returns the first tempo in the file
func (s *Source) BPM() float64 { return s.bpm }

// TempoCount returns how many tempo events the file holds. Only the first is used.
func (s *Source) TempoCount() int { return s.tempoCount }

// TickSeconds is the duration of one tick at the first tempo.
func (s *Source) TickSeconds() float64 {
	return 60.0 / (s.bpm * float64(s.resolution))
}

// tickWindow converts a [start, end] range in seconds to ticks.
func (s *Source) tickWindow(start, end float64) (int64, int64) {
	scale := s.TickSeconds()
	return int64(start / scale), int64(end / scale)
}

// noteOnTicks collects the distinct note-on ticks of every channel strictly
// inside the window. Zero-velocity note-ons are releases and are skipped.
func (s *Source) noteOnTicks(start, end int64) map[uint8]map[int64]struct{} {
	onsets := make(map[uint8]map[int64]struct{})
	for _, track := range s.file.Tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			if tick <= start || tick >= end {
				continue
			}
			var channel, key, velocity uint8
			if !ev.Message.GetNoteOn(&channel, &key, &velocity) || velocity == 0 {
				continue
			}
			if onsets[channel] == nil {
				onsets[channel] = make(map[int64]struct{})
			}
			onsets[channel][tick] = struct{}{}
		}
	}
	return onsets
}

// BestChannels returns the two channels whose note onsets coincide most
// often between start and end seconds. Ties go to the lowest channel numbers.
func (s *Source) BestChannels(start, end float64) ([2]uint8, error) {
	lo, hi := s.tickWindow(start, end)
	onsets := s.noteOnTicks(lo, hi)

	channels := make([]uint8, 0, len(onsets))
	for ch := range onsets {
		channels = append(channels, ch)
	}
	slices.Sort(channels)

	var best [2]uint8
	bestMatches := 0
	for i, main := range channels {
		for _, compare := range channels[i+1:] {
			matches := 0
			for tick := range onsets[main] {
				if _, ok := onsets[compare][tick]; ok {
					matches++
				}
			}
			if matches > bestMatches {
				bestMatches = matches
				best = [2]uint8{main, compare}
			}
		}
	}

	if bestMatches == 0 {
		return best, ErrNoChannels
	}
	return best, nil
}
