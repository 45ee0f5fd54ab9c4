package smoke

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	sampleRate    = 16000
	bitsPerSample = 16
	channels      = 1
)

// SilentWAV returns a mono 16 kHz PCM WAV file of length d.
func SilentWAV(d time.Duration) []byte {
	samples := int(d.Seconds() * sampleRate)
	dataLen := samples * channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + dataLen)
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16)) // fmt chunk size
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))  // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*bitsPerSample/8))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels*bitsPerSample/8))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}

// loadAudio reads path, or generates one second of silence when path is empty.
func loadAudio(path string) (name string, data []byte, err error) {
	if path == "" {
		return "smoke.wav", SilentWAV(time.Second), nil
	}
	data, err = os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read audio: %w", err)
	}
	return filepath.Base(path), data, nil
}
