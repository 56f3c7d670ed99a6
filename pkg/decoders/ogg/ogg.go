// Package ogg wraps jfreymuth/oggvorbis to provide Ogg/Vorbis decoding
// behind the same types.AudioDecoder contract the mp3/flac/wav decoders
// implement, so it can be dispatched from the same decoder factory.
package ogg

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

// Decoder wraps oggvorbis.Reader. It implements types.AudioDecoder.
//
// oggvorbis decodes directly to normalized float32 samples; we rescale to
// signed 16-bit PCM on the way out so downstream code (sound's byte-PCM
// export path) stays format-agnostic across all four container backends.
type Decoder struct {
	file     *os.File
	reader   *oggvorbis.Reader
	rate     int
	channels int

	// scratch holds decoded floats not yet consumed by the last
	// DecodeSamples call, carried over between calls.
	scratch    []float32
	scratchPos int
}

// NewDecoder creates a new Ogg/Vorbis decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens an Ogg/Vorbis file for decoding.
func (d *Decoder) Open(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open ogg file: %w", err)
	}

	reader, err := oggvorbis.NewReader(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to read ogg/vorbis stream: %w", err)
	}

	d.file = file
	d.reader = reader
	d.rate = reader.SampleRate()
	d.channels = reader.Channels()

	return nil
}

// Close closes the underlying file.
func (d *Decoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

// GetFormat returns sample rate, channel count, and a fixed 16-bit depth
// (the rescale target described above).
func (d *Decoder) GetFormat() (rate, channels, bitsPerSample int) {
	return d.rate, d.channels, 16
}

// DecodeSamples decodes up to 'samples' frames into audio as interleaved
// signed 16-bit little-endian PCM.
func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.reader == nil {
		return 0, errors.New("decoder not initialized")
	}

	needed := samples * d.channels
	total := 0

	for total < needed {
		if d.scratchPos >= len(d.scratch) {
			buf := make([]float32, 4096*d.channels)
			n, err := d.reader.Read(buf)
			if n == 0 {
				if errors.Is(err, io.EOF) || err == nil {
					return total / d.channels, io.EOF
				}
				return total / d.channels, err
			}
			d.scratch = buf[:n]
			d.scratchPos = 0
		}

		avail := len(d.scratch) - d.scratchPos
		take := needed - total
		if take > avail {
			take = avail
		}

		for i := 0; i < take; i++ {
			v := d.scratch[d.scratchPos+i]
			offset := (total + i) * 2
			if offset+2 > len(audio) {
				d.scratchPos += i
				return (total + i) / d.channels, nil
			}
			s := floatToInt16(v)
			audio[offset] = byte(s & 0xFF)
			audio[offset+1] = byte((s >> 8) & 0xFF)
		}

		total += take
		d.scratchPos += take
	}

	return total / d.channels, nil
}

func floatToInt16(v float32) int16 {
	f := float64(v) * 32768
	if f > 32767 {
		f = 32767
	}
	if f < -32768 {
		f = -32768
	}
	return int16(math.Round(f))
}
