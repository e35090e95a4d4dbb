package midi

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/makeasinger/midiconv/internal/model"
)

// TicksPerQuarter is the file resolution
const TicksPerQuarter = 480

// DefaultBPM is written when no tempo is known
const DefaultBPM = 120.0

// Track is one named part of a multi-track file
type Track struct {
	Name  string
	Notes []model.Note
}

// TracksByStem groups notes by StemLabel, keeping first-seen order. Notes
// without a label go to a single unnamed track.
func TracksByStem(notes []model.Note) []Track {
	index := map[string]int{}
	var tracks []Track
	for _, n := range notes {
		i, ok := index[n.StemLabel]
		if !ok {
			i = len(tracks)
			index[n.StemLabel] = i
			tracks = append(tracks, Track{Name: n.StemLabel})
		}
		tracks[i].Notes = append(tracks[i].Notes, n)
	}
	return tracks
}

type timedMessage struct {
	tick uint32
	off  bool
	msg  midi.Message
}

// Write encodes tracks as a format 1 SMF. The first track carries the
// tempo. A track named after a known stem gets that stem's instrument.
func Write(w io.Writer, tracks []Track, bpm float64) error {
	if bpm <= 0 || math.IsNaN(bpm) {
		bpm = DefaultBPM
	}
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	if len(tracks) == 0 {
		tracks = []Track{{}}
	}

	var alloc channelAllocator
	for i, t := range tracks {
		var tr smf.Track
		if i == 0 {
			tr.Add(0, smf.MetaTempo(bpm))
		}
		if t.Name != "" {
			tr.Add(0, smf.MetaTrackSequenceName(t.Name))
		}

		inst := InstrumentFor(t.Name)
		ch := alloc.assign(inst)
		if !inst.IsDrum {
			tr.Add(0, midi.ProgramChange(ch, inst.Program))
		}

		events := make([]timedMessage, 0, len(t.Notes)*2)
		for _, n := range t.Notes {
			on := secondsToTicks(n.Onset, bpm)
			off := secondsToTicks(n.Offset, bpm)
			if off <= on {
				off = on + 1
			}
			key := uint8(model.ClampPitch(n.Pitch))
			events = append(events,
				timedMessage{tick: on, msg: midi.NoteOn(ch, key, uint8(model.ClampVelocity(n.Velocity)))},
				timedMessage{tick: off, off: true, msg: midi.NoteOff(ch, key)},
			)
		}
		// note-offs first on a shared tick so repeated keys retrigger
		sort.SliceStable(events, func(a, b int) bool {
			if events[a].tick != events[b].tick {
				return events[a].tick < events[b].tick
			}
			return events[a].off && !events[b].off
		})

		var last uint32
		for _, ev := range events {
			tr.Add(ev.tick-last, ev.msg)
			last = ev.tick
		}
		tr.Close(0)

		if err := s.Add(tr); err != nil {
			return fmt.Errorf("failed to add track %q: %w", t.Name, err)
		}
	}

	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write MIDI: %w", err)
	}
	return nil
}

// Encode returns the SMF bytes for tracks
func Encode(tracks []Track, bpm float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, tracks, bpm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func secondsToTicks(sec, bpm float64) uint32 {
	if sec <= 0 {
		return 0
	}
	return uint32(math.Round(sec * bpm / 60 * TicksPerQuarter))
}
