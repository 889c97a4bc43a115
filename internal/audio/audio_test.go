package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canary-speech-client/internal/common/errors"
)

func sine(sampleRate int, seconds float64) []int16 {
	n := int(float64(sampleRate) * seconds)
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(16383 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}
	return samples
}

// headerOnly returns a canonical header that declares dataSize bytes of
// audio without carrying them.
func headerOnly(t *testing.T, sampleRate uint32, channels, bits uint16, dataSize uint32) []byte {
	t.Helper()
	h := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    sampleRate,
		ByteRate:      sampleRate * uint32(channels) * uint32(bits) / 8,
		BlockAlign:    channels * bits / 8,
		BitsPerSample: bits,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
	buf := new(bytes.Buffer)
	require.NoError(t, binary.Write(buf, binary.LittleEndian, h))
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestEncodeWAV_RoundTripsThroughReadWAVInfo(t *testing.T) {
	samples := sine(16000, 2)
	data, err := EncodeWAV(samples, 16000)
	require.NoError(t, err)
	assert.Len(t, data, 44+len(samples)*2)

	info, err := GetWAVInfo(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(16000), info.SampleRate)
	assert.Equal(t, uint16(1), info.Channels)
	assert.Equal(t, uint16(16), info.BitsPerSample)
	assert.Equal(t, uint32(len(samples)), info.NumFrames)
	assert.InDelta(t, 2.0, info.Duration, 0.001)
}

func TestEncodeWAV_Invalid(t *testing.T) {
	_, err := EncodeWAV(nil, 16000)
	assert.Error(t, err)
	_, err = EncodeWAV([]int16{1}, 0)
	assert.Error(t, err)
	_, err = EncodePCM([]byte{1}, 16000, 1, 12)
	assert.Error(t, err)
}

func TestReadWAVInfo_SkipsExtraChunks(t *testing.T) {
	pcm := make([]byte, 48000*2*2) // 1s stereo 16-bit at 48kHz
	canonical, err := EncodePCM(pcm, 48000, 2, 16)
	require.NoError(t, err)

	// Insert an odd-sized LIST chunk between fmt and data.
	var buf bytes.Buffer
	buf.Write(canonical[:36])
	buf.WriteString("LIST")
	binary.Write(&buf, binary.LittleEndian, uint32(3))
	buf.Write([]byte{'a', 'b', 'c', 0})
	buf.Write(canonical[36:])

	info, err := ReadWAVInfo(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), info.Channels)
	assert.InDelta(t, 1.0, info.Duration, 0.001)
}

func TestReadWAVInfo_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte("RIFF")},
		{"not riff", append([]byte("RIFX\x00\x00\x00\x00WAVE"), make([]byte, 32)...)},
		{"not wave", append([]byte("RIFF\x00\x00\x00\x00AVI "), make([]byte, 32)...)},
		{"no data chunk", headerOnly(t, 16000, 1, 16, 0)[:36]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadWAVInfo(bytes.NewReader(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestOpenRecording_LocalFailuresAreUploadErrors(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, "empty.wav", nil)

	for name, path := range map[string]string{
		"missing":   filepath.Join(dir, "nope.wav"),
		"directory": dir,
		"empty":     empty,
		"blank":     "  ",
	} {
		t.Run(name, func(t *testing.T) {
			rec, err := OpenRecording(path)
			assert.Nil(t, rec)
			assert.ErrorIs(t, err, errors.ErrUpload)
		})
	}
}

func TestOpenRecording_HardRequirements(t *testing.T) {
	lowRate := writeFile(t, "low-rate.wav", headerOnly(t, 8000, 1, 16, 8000*2*30))
	_, err := OpenRecording(lowRate)
	assert.ErrorIs(t, err, errors.ErrUpload)
	assert.ErrorContains(t, err, "sample rate too low")

	lowDepth := writeFile(t, "8bit.wav", headerOnly(t, 16000, 1, 8, 16000*30))
	_, err = OpenRecording(lowDepth)
	assert.ErrorIs(t, err, errors.ErrUpload)
	assert.ErrorContains(t, err, "bit depth too low")
}

func TestOpenRecording_Warnings(t *testing.T) {
	tests := []struct {
		name         string
		header       []byte
		wantWarnings int
	}{
		{"recommended", headerOnly(t, 48000, 1, 16, 48000*2*45), 0},
		{"acceptable rate", headerOnly(t, 16000, 1, 16, 16000*2*45), 1},
		{"24 bit", headerOnly(t, 48000, 1, 24, 48000*3*45), 1},
		{"surround", headerOnly(t, 48000, 6, 16, 48000*12*45), 1},
		{"short", headerOnly(t, 48000, 1, 16, 48000*2*10), 1},
		{"acceptable length", headerOnly(t, 48000, 1, 16, 48000*2*30), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := OpenRecording(writeFile(t, "rec.wav", tt.header))
			require.NoError(t, err)
			assert.Len(t, rec.Warnings, tt.wantWarnings, rec.Warnings)
			assert.Equal(t, "audio/wav", rec.ContentType)
			assert.Equal(t, int64(len(tt.header)), rec.Size)
			assert.NotNil(t, rec.Info)
		})
	}
}

func TestOpenRecording_UnreadableHeaderIsAWarning(t *testing.T) {
	rec, err := OpenRecording(writeFile(t, "garbage.wav", []byte("definitely not a wav file")))
	require.NoError(t, err)
	assert.Nil(t, rec.Info)
	assert.Zero(t, rec.Duration())
	require.Len(t, rec.Warnings, 1)
	assert.Contains(t, rec.Warnings[0], "unable to validate WAV header")
}

func TestOpenRecording_OtherFormats(t *testing.T) {
	rec, err := OpenRecording(writeFile(t, "answer.MP3", []byte("ID3...")))
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", rec.ContentType)
	assert.Len(t, rec.Warnings, 1)

	rec, err = OpenRecording(writeFile(t, "answer.aiff", []byte("FORM")))
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", rec.ContentType)
	assert.Len(t, rec.Warnings, 2)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "audio/wav", ContentTypeFor("/tmp/a.WAV"))
	assert.Equal(t, "audio/flac", ContentTypeFor("a.flac"))
	assert.Equal(t, []string{".flac", ".m4a", ".mp3", ".ogg", ".wav"}, SupportedExtensions())
}
