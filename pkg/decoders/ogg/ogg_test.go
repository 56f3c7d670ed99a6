package ogg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewDecoder(t *testing.T) {
	d := NewDecoder()
	if d == nil {
		t.Fatal("NewDecoder returned nil")
	}
}

func TestDecoderGetFormatBeforeOpen(t *testing.T) {
	d := NewDecoder()
	rate, channels, bps := d.GetFormat()
	if rate != 0 || channels != 0 {
		t.Errorf("before Open: got rate=%d channels=%d, want 0,0", rate, channels)
	}
	if bps != 16 {
		t.Errorf("GetFormat bits per sample: got %d, want fixed 16 (rescale target)", bps)
	}
}

func TestOpenRejectsNonOggFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-ogg.bin")
	if err := os.WriteFile(path, []byte("not an ogg stream"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := NewDecoder()
	if err := d.Open(path); err == nil {
		t.Error("Open on a non-ogg file: expected error, got nil")
	}
}

func TestDecodeSamplesWithoutOpen(t *testing.T) {
	d := NewDecoder()
	buf := make([]byte, 1024)
	if _, err := d.DecodeSamples(64, buf); err == nil {
		t.Error("DecodeSamples before Open: expected error, got nil")
	}
}

func TestCloseWithoutOpenIsSafe(t *testing.T) {
	d := NewDecoder()
	if err := d.Close(); err != nil {
		t.Errorf("Close on unopened decoder: %v", err)
	}
}

func TestFloatToInt16Clamps(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1.0, 32767},
		{-1.0, -32768},
		{2.0, 32767},  // out-of-range input still clamps
		{-2.0, -32768},
	}

	for _, tt := range tests {
		if got := floatToInt16(tt.in); got != tt.want {
			t.Errorf("floatToInt16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
