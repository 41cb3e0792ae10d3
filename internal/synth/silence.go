package synth

// Silence returns durationSeconds of zero-filled 16-bit mono PCM at
// sampleRate. Returns nil for non-positive inputs.
func Silence(durationSeconds float64, sampleRate int) []byte {
	if durationSeconds <= 0 || sampleRate <= 0 {
		return nil
	}
	samples := int(float64(sampleRate) * durationSeconds)
	return make([]byte, samples*2)
}
