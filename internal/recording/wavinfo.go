package recording

import (
	"bytes"
	"time"

	"github.com/go-audio/wav"
)

// AudioInfo describes a decoded WAV upload.
type AudioInfo struct {
	Duration   time.Duration
	SampleRate int
	Channels   int
	BitDepth   int
}

// InspectWAV reads the WAV header of data. ok is false when data is not a
// valid, non-empty WAV file; other containers are not inspected.
//
// Duration is derived from the size of the data chunk, so header and
// metadata chunks do not count towards it.
func InspectWAV(data []byte) (info AudioInfo, ok bool) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return AudioInfo{}, false
	}
	if err := dec.FwdToPCM(); err != nil {
		return AudioInfo{}, false
	}
	bytesPerSec := int64(dec.SampleRate) * int64(dec.NumChans) * int64(dec.BitDepth) / 8
	if bytesPerSec <= 0 || dec.PCMLen() <= 0 {
		return AudioInfo{}, false
	}
	return AudioInfo{
		Duration:   time.Duration(dec.PCMLen()) * time.Second / time.Duration(bytesPerSec),
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}, true
}
