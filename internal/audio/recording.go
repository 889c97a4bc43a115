package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"canary-speech-client/internal/common/errors"
)

// Canary Speech recording guidelines.
const (
	MinSampleRate          = 16000
	RecommendedSampleRate  = 48000
	RequiredBitsPerSample  = 16
	MaxChannels            = 2
	MinDurationSeconds     = 20.0
	OptimalDurationSeconds = 40.0
)

const defaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

// SupportedExtensions lists the accepted file extensions in sorted order.
func SupportedExtensions() []string {
	out := make([]string, 0, len(contentTypes))
	for ext := range contentTypes {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// ContentTypeFor maps a file name to the Content-Type sent on upload.
func ContentTypeFor(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return defaultContentType
}

// Recording is an audio file that passed the pre-upload checks.
type Recording struct {
	Path        string
	Size        int64
	ContentType string
	// Info is nil for non-WAV files and for WAV files whose header
	// could not be read.
	Info     *WAVInfo
	Warnings []string
}

// Duration returns the WAV duration in seconds, or 0 when unknown.
func (r *Recording) Duration() float64 {
	if r.Info == nil {
		return 0
	}
	return r.Info.Duration
}

// Open opens the file for streaming.
func (r *Recording) Open() (*os.File, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return nil, errors.NewUploadError(fmt.Sprintf("cannot open audio file %s", r.Path), err)
	}
	return f, nil
}

// OpenRecording checks path without any network I/O. A missing, unreadable,
// empty or directory path is an UPLOAD_ERROR, as is a WAV file below the
// minimum sample rate or bit depth. Softer findings end up in Warnings.
func OpenRecording(path string) (*Recording, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.NewUploadError("audio file path is empty", nil)
	}

	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewUploadError(fmt.Sprintf("audio file not found: %s", path), err)
		}
		return nil, errors.NewUploadError(fmt.Sprintf("cannot stat audio file %s", path), err)
	}
	if st.IsDir() {
		return nil, errors.NewUploadError(fmt.Sprintf("audio file %s is a directory", path), nil)
	}
	if st.Size() == 0 {
		return nil, errors.NewUploadError(fmt.Sprintf("audio file %s is empty", path), nil)
	}

	rec := &Recording{
		Path:        path,
		Size:        st.Size(),
		ContentType: ContentTypeFor(path),
	}

	f, err := rec.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := contentTypes[ext]; !ok {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf(
			"unsupported file extension %q (supported: %s)", ext, strings.Join(SupportedExtensions(), ", ")))
	}
	if ext != ".wav" {
		rec.Warnings = append(rec.Warnings, "non-WAV audio may not be optimal for analysis; uncompressed WAV is recommended")
		return rec, nil
	}

	info, err := ReadWAVInfo(f)
	if err != nil {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("unable to validate WAV header: %v", err))
		return rec, nil
	}
	rec.Info = info

	if err := checkRequirements(info); err != nil {
		return nil, err
	}
	rec.Warnings = append(rec.Warnings, recommendations(info)...)
	return rec, nil
}

func checkRequirements(info *WAVInfo) error {
	var problems []string
	if info.SampleRate < MinSampleRate {
		problems = append(problems, fmt.Sprintf("sample rate too low: %dHz (minimum: %dHz)", info.SampleRate, MinSampleRate))
	}
	if info.BitsPerSample < RequiredBitsPerSample {
		problems = append(problems, fmt.Sprintf("bit depth too low: %d-bit (minimum: %d-bit)", info.BitsPerSample, RequiredBitsPerSample))
	}
	if len(problems) > 0 {
		return errors.NewUploadError("audio validation failed: "+strings.Join(problems, "; "), nil)
	}
	return nil
}

func recommendations(info *WAVInfo) []string {
	var warnings []string
	if info.SampleRate < RecommendedSampleRate {
		warnings = append(warnings, fmt.Sprintf("sample rate %dHz is acceptable but %dHz recommended", info.SampleRate, RecommendedSampleRate))
	}
	if info.BitsPerSample > RequiredBitsPerSample {
		warnings = append(warnings, fmt.Sprintf("bit depth %d-bit is higher than required %d-bit", info.BitsPerSample, RequiredBitsPerSample))
	}
	if info.Channels > MaxChannels {
		warnings = append(warnings, fmt.Sprintf("multi-channel audio (%d channels), 1 channel per speaker recommended", info.Channels))
	}
	switch {
	case info.Duration < MinDurationSeconds:
		warnings = append(warnings, fmt.Sprintf("audio duration %.1fs is short (20-45s recommended)", info.Duration))
	case info.Duration < OptimalDurationSeconds:
		warnings = append(warnings, fmt.Sprintf("audio duration %.1fs is acceptable (40-45s optimal)", info.Duration))
	}
	return warnings
}
