package midi

import "github.com/makeasinger/midiconv/internal/model"

// drumChannel is MIDI channel 10, zero-based
const drumChannel = 9

// Instrument is the General MIDI voice used for a stem
type Instrument struct {
	Program uint8
	IsDrum  bool
}

var stemInstruments = map[string]Instrument{
	model.StemVocals: {Program: 52}, // choir aahs
	model.StemDrums:  {IsDrum: true},
	model.StemBass:   {Program: 32}, // acoustic bass
	model.StemOther:  {Program: 48}, // string ensemble
	model.StemGuitar: {Program: 26}, // jazz guitar
	model.StemPiano:  {Program: 0},
}

// InstrumentFor returns the voice for a stem label, piano when unknown
func InstrumentFor(stem string) Instrument {
	if inst, ok := stemInstruments[stem]; ok {
		return inst
	}
	return Instrument{Program: 0}
}

// channelAllocator hands out melodic channels, skipping the drum channel
type channelAllocator struct {
	next uint8
}

func (a *channelAllocator) assign(inst Instrument) uint8 {
	if inst.IsDrum {
		return drumChannel
	}
	ch := a.next
	if ch == drumChannel {
		ch++
	}
	if ch > 15 {
		// more than 15 melodic stems share the last channel
		ch = 15
	}
	a.next = ch + 1
	return ch
}
