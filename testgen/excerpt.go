package testgen

import (
	"fmt"
	"io"
	"math/rand/v2"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"gonum.org/v1/gonum/stat/distuv"
)

// Excerpt describes one channel rendered between two times with timing jitter.
type Excerpt struct {
	Channel  uint8
	Start    float64 // seconds
	End      float64 // seconds
	JitterMS float64 // twice the standard deviation of the per-event offset
}

// jitter draws per-event tick offsets from a zero-mean normal distribution.
type jitter struct {
	dist *distuv.Normal
}

func newJitter(jitterMS, tickSeconds float64, src rand.Source) jitter {
	sigma := jitterMS / 2 / 1000 / tickSeconds
	if sigma <= 0 {
		return jitter{}
	}
	return jitter{dist: &distuv.Normal{Mu: 0, Sigma: sigma, Src: src}}
}

func (j jitter) ticks() int64 {
	if j.dist == nil {
		return 0
	}
	return int64(j.dist.Rand())
}

// Build returns a new SMF holding only the excerpt's channel. Every note
// event inside the window keeps its spacing plus a random offset, and the
// first tempo and the channel's program changes are carried over.
func (s *Source) Build(e Excerpt, src rand.Source) (*smf.SMF, error) {
	if e.End <= e.Start {
		return nil, fmt.Errorf("excerpt end %.3fs must follow start %.3fs", e.End, e.Start)
	}

	start, end := s.tickWindow(e.Start, e.End)
	j := newJitter(e.JitterMS, s.TickSeconds(), src)

	out := smf.New()
	out.TimeFormat = s.file.TimeFormat

	var meta smf.Track
	meta.Add(0, smf.MetaMeter(4, 4))
	meta.Close(1)
	if err := out.Add(meta); err != nil {
		return nil, fmt.Errorf("add meta track: %w", err)
	}

	tracks := 0
	for _, track := range s.file.Tracks {
		var (
			notes    smf.Track
			programs smf.Track
			tick     int64
			lastTick = start
		)
		for _, ev := range track {
			tick += int64(ev.Delta)

			var channel, key, velocity, program uint8
			if midi.Message(ev.Message).GetProgramChange(&channel, &program) && channel == e.Channel {
				programs.Add(0, midi.ProgramChange(channel, program))
				continue
			}
			if tick <= start || tick >= end {
				continue
			}

			var msg midi.Message
			switch {
			case ev.Message.GetNoteOn(&channel, &key, &velocity):
				msg = midi.NoteOn(channel, key, velocity)
			case ev.Message.GetNoteOff(&channel, &key, &velocity):
				msg = midi.NoteOff(channel, key)
			default:
				continue
			}
			if channel != e.Channel {
				continue
			}

			delta := max(tick-lastTick+j.ticks(), 0)
			notes.Add(uint32(delta), msg)
			lastTick = tick
		}
		if len(notes) == 0 {
			continue
		}

		var t smf.Track
		t.Add(0, s.tempo)
		t = append(t, programs...)
		t = append(t, notes...)
		t.Close(1)
		if err := out.Add(t); err != nil {
			return nil, fmt.Errorf("add track: %w", err)
		}
		tracks++
	}

	if tracks == 0 {
		return nil, fmt.Errorf("channel %d: %w", e.Channel, ErrNoNotes)
	}
	return out, nil
}

// WriteExcerpt builds the excerpt and writes it as a standard MIDI file.
func (s *Source) WriteExcerpt(w io.Writer, e Excerpt, src rand.Source) error {
	file, err := s.Build(e, src)
	if err != nil {
		return err
	}
	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("write excerpt: %w", err)
	}
	return nil
}
