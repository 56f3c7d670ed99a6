// Package sound implements the decode-to-PCM pipeline: demux a container,
// decode blocks on demand, and export each decoded block into an internal
// planar buf.Seq scratch as f32.
package sound

import (
	"errors"
	"fmt"
	"io"

	"github.com/n977/tape/pkg/buf"
	"github.com/n977/tape/pkg/decoders"
	"github.com/n977/tape/pkg/types"
)

// blockFrames is the number of frames decoded per container read.
const blockFrames = 4096

var (
	// ErrUnsupported covers no probe match, an unreadable first packet,
	// or an unknown decoded sample type.
	ErrUnsupported = errors.New("sound: unsupported media container")
	// ErrInvalid signals no usable track in the container.
	ErrInvalid = errors.New("sound: invalid media container")
)

// Sound owns a demuxer+decoder pair (via types.AudioDecoder) and a planar
// f32 scratch buffer sized to blockFrames.
type Sound struct {
	path     string
	decoder  types.AudioDecoder
	rate     int
	channels int
	bps      int

	raw     []byte
	scratch *buf.Seq[float32]
}

// New opens path, probes its container, and decodes the first block so
// that Spec (frames/channels) is known immediately. Callers pass an
// already-resolved file path; locating files is the caller's job.
func New(path string) (*Sound, error) {
	dec, err := decoders.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	rate, channels, bps := dec.GetFormat()
	if channels <= 0 || rate <= 0 {
		dec.Close()
		return nil, ErrInvalid
	}

	s := &Sound{
		path:     path,
		decoder:  dec,
		rate:     rate,
		channels: channels,
		bps:      bps,
		raw:      make([]byte, blockFrames*channels*maxBytesPerSample),
		scratch:  buf.NewSeq[float32](buf.NewSpec(blockFrames, channels)),
	}

	if !s.advance() {
		dec.Close()
		return nil, fmt.Errorf("%w: failed to decode first block", ErrUnsupported)
	}

	return s, nil
}

// Path reports the file path this Sound was opened from.
func (s *Sound) Path() string { return s.path }

// Spec reports the scratch buffer's frame capacity and channel count.
func (s *Sound) Spec() buf.Spec { return s.scratch.Spec() }

// Channels reports the decoded channel count.
func (s *Sound) Channels() int { return s.channels }

// SampleRate reports the decoded sample rate in Hz.
func (s *Sound) SampleRate() int { return s.rate }

// advance is the fetch-and-decode loop: decode the next block, skipping
// over recoverable decode/IO errors, exporting the result into the planar
// scratch. Returns false once the source is exhausted or an unrecoverable
// error occurs.
func (s *Sound) advance() bool {
	for {
		bytesPerSample := s.bps / 8
		need := blockFrames * s.channels * bytesPerSample
		if need > len(s.raw) {
			s.raw = make([]byte, need)
		}

		n, err := s.decoder.DecodeSamples(blockFrames, s.raw[:need])
		if n == 0 {
			if err == nil || errors.Is(err, io.EOF) {
				return false
			}
			// Recoverable mid-stream error: try the next block.
			continue
		}

		planes := deinterleaveToFloat32(s.raw[:need], s.channels, s.bps, n)
		src := buf.NewDyRef[float32](planes, buf.NewSpec(n, s.channels))

		s.scratch.SetPos(0)
		s.scratch.SetLen(0)
		buf.WriteAll(src, s.scratch)

		return true
	}
}

// Write copies decoded frames into dst, converting f32 to dst's item
// type: if the scratch is drained, refill it via advance() first. Returns
// the number of frames written (0 signals exhaustion).
//
// This is a package-level generic function rather than a method because
// Go methods cannot carry their own type parameters; dst's sample type D
// is independent of Sound's fixed f32 scratch type.
func Write[D buf.Sample](s *Sound, dst buf.BufMut[D]) int {
	if s.scratch.IsEmpty() {
		if !s.advance() {
			return 0
		}
	}
	return buf.Write[float32, D](s.scratch, dst)
}

// Seek requests an accurate seek to t seconds by reopening the container
// and discarding decoded frames until the target is reached (none of the
// wrapped decoders expose a native seek table). It reports the same thing
// the demuxer-backed original reports for a successful seek: true once
// the container was reopened and positioned, even if the target lies
// past the end of the stream (the discard loop simply drains to EOF in
// that case, leaving the Sound exhausted at its current track). False is
// reserved for a failure to reopen the source at all.
func (s *Sound) Seek(t float64) bool {
	target := int64(t * float64(s.rate))

	dec, err := decoders.NewDecoder(s.path)
	if err != nil {
		return false
	}

	s.decoder.Close()
	s.decoder = dec
	s.scratch.SetPos(0)
	s.scratch.SetLen(0)

	var consumed int64
	for consumed < target {
		if !s.advance() {
			break // ran out of data before reaching target
		}

		avail := int64(s.scratch.Len())
		remain := target - consumed

		if avail <= remain {
			consumed += avail
			s.scratch.SetPos(s.scratch.Len())
			continue
		}

		s.scratch.SetPos(int(remain))
		consumed = target
	}

	return true
}

// Rewind seeks to the beginning of the track.
func (s *Sound) Rewind() bool { return s.Seek(0) }

// Close releases the underlying decoder.
func (s *Sound) Close() error { return s.decoder.Close() }

const maxBytesPerSample = 4

// deinterleaveToFloat32 converts 'frames' interleaved PCM frames of the
// given bit depth into per-channel float32 planes in [-1, 1]. 8-bit PCM
// is treated as unsigned (the WAV convention); wider depths are signed
// little-endian, matching what pkg/decoders/wav, .../flac and .../mp3
// already write into their byte buffers.
func deinterleaveToFloat32(raw []byte, channels, bitsPerSample, frames int) [][]float32 {
	planes := make([][]float32, channels)
	for c := range planes {
		planes[c] = make([]float32, frames)
	}

	bytesPerSample := bitsPerSample / 8

	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			offset := (f*channels + c) * bytesPerSample
			if offset+bytesPerSample > len(raw) {
				continue
			}

			var v float32
			switch bitsPerSample {
			case 8:
				v = (float32(raw[offset]) - 128) / 128
			case 16:
				u := uint16(raw[offset]) | uint16(raw[offset+1])<<8
				v = float32(int16(u)) / 32768
			case 24:
				u := uint32(raw[offset]) | uint32(raw[offset+1])<<8 | uint32(raw[offset+2])<<16
				if u&0x800000 != 0 {
					u |= 0xFF000000
				}
				v = float32(int32(u)) / 8388608
			case 32:
				u := uint32(raw[offset]) | uint32(raw[offset+1])<<8 | uint32(raw[offset+2])<<16 | uint32(raw[offset+3])<<24
				v = float32(int32(u)) / 2147483648
			}

			planes[c][f] = v
		}
	}

	return planes
}
