package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// WAV is a decoded 16-bit PCM RIFF/WAVE file.
type WAV struct {
	SampleRate int
	Channels   int

	// Samples holds interleaved 16-bit samples.
	Samples []int16
}

// Duration returns the playback length of w.
func (w WAV) Duration() time.Duration {
	if w.Channels <= 0 {
		return 0
	}
	return SamplesDuration(len(w.Samples)/w.Channels, w.SampleRate)
}

// Mono returns w's samples down-mixed to mono float32.
func (w WAV) Mono() []float32 {
	return Downmix(Int16ToFloat32(w.Samples), w.Channels)
}

// MonoPCM returns w's samples down-mixed to mono 16-bit by integer averaging.
func (w WAV) MonoPCM() []int16 {
	if w.Channels <= 1 {
		return w.Samples
	}
	n := len(w.Samples) / w.Channels
	out := make([]int16, n)
	for i := range n {
		var sum int
		for c := range w.Channels {
			sum += int(w.Samples[i*w.Channels+c])
		}
		out[i] = int16(sum / w.Channels)
	}
	return out
}

// EncodeWAV wraps 16-bit PCM in a canonical 44-byte RIFF/WAVE header.
func EncodeWAV(pcm []int16, sampleRate, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	dataSize := len(pcm) * 2
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(s))
	}
	return buf
}

// DecodeWAV parses a 16-bit PCM RIFF/WAVE file. Chunks other than "fmt " and
// "data" are skipped, so files with LIST or fact chunks decode correctly.
func DecodeWAV(data []byte) (WAV, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return WAV{}, errors.New("audio: wav: missing RIFF/WAVE header")
	}

	var (
		w       WAV
		haveFmt bool
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return WAV{}, errors.New("audio: wav: truncated fmt chunk")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if (format != wavFormatPCM && format != wavFormatExtensible) || bits != 16 {
				return WAV{}, fmt.Errorf("audio: wav: unsupported format %d with %d bits per sample", format, bits)
			}
			w.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			w.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return WAV{}, errors.New("audio: wav: data chunk before fmt chunk")
			}
			end := body + size
			if end > len(data) {
				end = len(data)
			}
			w.Samples = BytesToInt16(data[body:end])
			return w, nil
		}

		offset = body + size
		if size%2 != 0 {
			offset++
		}
	}
	return WAV{}, errors.New("audio: wav: missing data chunk")
}
