// Package audio inspects recordings before they are uploaded for assessment.
// It reads WAV headers to check sample rate, bit depth, channel count and
// duration against the Canary Speech recording guidelines. The file bytes
// are never modified.
package audio
