package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// WAVHeader represents the canonical 44-byte header of a PCM WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// fmtChunk is the PCM part of a "fmt " chunk body.
type fmtChunk struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// WAVInfo holds the header fields checked before upload.
type WAVInfo struct {
	AudioFormat   uint16  `json:"audio_format"`
	SampleRate    uint32  `json:"sample_rate"`
	Channels      uint16  `json:"channels"`
	BitsPerSample uint16  `json:"bits_per_sample"`
	Duration      float64 `json:"duration_seconds"`
	DataSize      uint32  `json:"data_size_bytes"`
	NumFrames     uint32  `json:"num_frames"`
}

// EncodeWAV encodes mono PCM-16 samples into WAV format
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	return EncodePCM(buf.Bytes(), sampleRate, 1, 16)
}

// EncodePCM wraps raw interleaved PCM bytes in a canonical WAV header.
func EncodePCM(pcm []byte, sampleRate int, channels, bitsPerSample uint16) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels == 0 || bitsPerSample == 0 || bitsPerSample%8 != 0 {
		return nil, fmt.Errorf("invalid PCM layout: %d channels, %d bits", channels, bitsPerSample)
	}

	dataSize := uint32(len(pcm))
	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   channels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(channels) * uint32(bitsPerSample) / 8,
		BlockAlign:    channels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// ReadWAVInfo reads the RIFF chunk list up to the data chunk. Chunks other
// than "fmt " (LIST, fact, ...) are skipped, so only the header is consumed.
func ReadWAVInfo(r io.Reader) (*WAVInfo, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("WAV data too short: %w", err)
	}
	if string(riff[0:4]) != "RIFF" {
		return nil, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	var format *fmtChunk
	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			return nil, fmt.Errorf("invalid WAV file: missing data chunk: %w", err)
		}

		switch string(chunk.ID[:]) {
		case "fmt ":
			if chunk.Size < 16 {
				return nil, fmt.Errorf("invalid WAV file: fmt chunk is %d bytes", chunk.Size)
			}
			format = &fmtChunk{}
			if err := binary.Read(r, binary.LittleEndian, format); err != nil {
				return nil, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			if err := skip(r, int64(chunk.Size)-16+int64(chunk.Size&1)); err != nil {
				return nil, err
			}
		case "data":
			if format == nil {
				return nil, fmt.Errorf("invalid WAV file: data chunk before fmt chunk")
			}
			return newWAVInfo(format, chunk.Size)
		default:
			if err := skip(r, int64(chunk.Size)+int64(chunk.Size&1)); err != nil {
				return nil, err
			}
		}
	}
}

func newWAVInfo(f *fmtChunk, dataSize uint32) (*WAVInfo, error) {
	if f.SampleRate == 0 {
		return nil, fmt.Errorf("invalid sample rate: 0")
	}
	info := &WAVInfo{
		AudioFormat:   f.AudioFormat,
		SampleRate:    f.SampleRate,
		Channels:      f.NumChannels,
		BitsPerSample: f.BitsPerSample,
		DataSize:      dataSize,
	}
	frameSize := uint32(f.BlockAlign)
	if frameSize == 0 {
		frameSize = uint32(f.NumChannels) * uint32(f.BitsPerSample) / 8
	}
	if frameSize > 0 {
		info.NumFrames = dataSize / frameSize
		info.Duration = float64(info.NumFrames) / float64(f.SampleRate)
	}
	return info, nil
}

// GetWAVInfo extracts metadata from an in-memory WAV file
func GetWAVInfo(data []byte) (*WAVInfo, error) {
	return ReadWAVInfo(bytes.NewReader(data))
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("invalid WAV file: truncated chunk: %w", err)
	}
	return nil
}
