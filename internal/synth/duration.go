package synth

import (
	"bytes"

	"github.com/go-audio/wav"
)

// Bytes per second of MP3 audio at the 128 kbps default bitrate. Used when
// the payload cannot be decoded.
const fallbackByteRate = 128000.0 / 8

// EstimateDuration returns the playback duration of an audio payload in
// seconds. WAV payloads are decoded exactly, MP3 payloads are measured by
// walking frame headers, and anything else falls back to a constant-bitrate
// estimate.
func EstimateDuration(data []byte, format string) float64 {
	if len(data) == 0 {
		return 0
	}
	switch format {
	case "wav":
		if d, err := wavDuration(data); err == nil {
			return d
		}
	case "mp3":
		if d, ok := mp3Duration(data); ok {
			return d
		}
	}
	return float64(len(data)) / fallbackByteRate
}

func wavDuration(data []byte) (float64, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	d, err := dec.Duration()
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}

// MPEG-1 Layer III tables.
var (
	mp3Bitrates    = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
	mp3SampleRates = [4]int{44100, 48000, 32000, 0}
)

const mp3SamplesPerFrame = 1152

// mp3Duration walks MPEG-1 Layer III frame headers and sums per-frame
// durations. Returns false when no valid frame is found.
func mp3Duration(data []byte) (float64, bool) {
	i := skipID3(data)
	var seconds float64
	frames := 0
	for i+4 <= len(data) {
		if data[i] != 0xFF || data[i+1]&0xE0 != 0xE0 {
			i++
			continue
		}
		version := (data[i+1] >> 3) & 0x3
		layer := (data[i+1] >> 1) & 0x3
		if version != 3 || layer != 1 {
			i++
			continue
		}
		bitrateIdx := data[i+2] >> 4
		sampleIdx := (data[i+2] >> 2) & 0x3
		bitrate := mp3Bitrates[bitrateIdx] * 1000
		sampleRate := mp3SampleRates[sampleIdx]
		if bitrate == 0 || sampleRate == 0 {
			i++
			continue
		}
		padding := int((data[i+2] >> 1) & 0x1)
		frameLen := 144*bitrate/sampleRate + padding
		seconds += float64(mp3SamplesPerFrame) / float64(sampleRate)
		frames++
		i += frameLen
	}
	if frames == 0 {
		return 0, false
	}
	return seconds, true
}

// skipID3 returns the offset past a leading ID3v2 tag, if present. Tag size
// is stored as four 7-bit syncsafe bytes.
func skipID3(data []byte) int {
	if len(data) < 10 || !bytes.HasPrefix(data, []byte("ID3")) {
		return 0
	}
	size := int(data[6]&0x7F)<<21 | int(data[7]&0x7F)<<14 | int(data[8]&0x7F)<<7 | int(data[9]&0x7F)
	return 10 + size
}
