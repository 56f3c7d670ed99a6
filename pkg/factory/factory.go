// Package factory implements the playlist: an ordered, mutable sequence of
// decoded Sounds shared between the server's mutator thread and the audio
// callback's reader/advancer.
package factory

import (
	"sync"
	"sync/atomic"

	"github.com/n977/tape/pkg/buf"
	"github.com/n977/tape/pkg/sound"
)

// Factory owns the playlist items, its repeat-mode state, and the current
// playhead index. items is guarded by one mutex, state by another, and pos
// is atomic so the audio callback can read the current index without
// taking the items lock when no advance is required.
type Factory struct {
	itemsMu sync.Mutex
	items   []*sound.Sound

	stateMu sync.Mutex
	state   State

	pos atomic.Int64
}

// New returns an empty Factory with repeat-mode Disabled.
func New() *Factory {
	return &Factory{}
}

// Push appends s to the playlist under the items lock.
func (f *Factory) Push(s *sound.Sound) {
	f.itemsMu.Lock()
	defer f.itemsMu.Unlock()
	f.items = append(f.items, s)
}

// Map delivers a mutable view of the items sequence to fn under the items
// lock. Used for both append (Add) and deletion (Remove) by the server's
// request dispatch.
func (f *Factory) Map(fn func(items []*sound.Sound) []*sound.Sound) {
	f.itemsMu.Lock()
	defer f.itemsMu.Unlock()
	f.items = fn(f.items)
}

// Len reports the current playlist length under the items lock.
func (f *Factory) Len() int {
	f.itemsMu.Lock()
	defer f.itemsMu.Unlock()
	return len(f.items)
}

// State returns a copy of the current FactoryState under the state lock.
func (f *Factory) State() State {
	f.stateMu.Lock()
	defer f.stateMu.Unlock()
	return f.state
}

// SetState overwrites the FactoryState under the state lock and returns
// the value it replaced.
func (f *Factory) SetState(s State) State {
	f.stateMu.Lock()
	defer f.stateMu.Unlock()
	prev := f.state
	f.state = s
	return prev
}

// Pos is an atomic load of the current playhead index.
func (f *Factory) Pos() int { return int(f.pos.Load()) }

// CurrentPath reports the file path of the item at the current playhead,
// or "" if the playlist is empty or the playhead is out of range.
func (f *Factory) CurrentPath() string {
	pos := f.Pos()

	f.itemsMu.Lock()
	defer f.itemsMu.Unlock()

	if pos < 0 || pos >= len(f.items) {
		return ""
	}
	return f.items[pos].Path()
}

// Seek requests a seek to t seconds on the current item. If the item
// reports success, the Factory auto-advances with translate(+1, Modal);
// see DESIGN.md for why that "success means advance" mapping is kept
// as-is rather than inverted.
func (f *Factory) Seek(t float64) {
	pos := f.Pos()

	f.itemsMu.Lock()
	var item *sound.Sound
	if pos >= 0 && pos < len(f.items) {
		item = f.items[pos]
	}
	ok := item != nil && item.Seek(t)
	f.itemsMu.Unlock()

	if ok {
		f.Translate(1, Modal)
	}
}

// Select jumps the playhead to pos absolutely, rewinding that item first.
// Reports whether pos was valid and the rewind succeeded.
func (f *Factory) Select(pos int) bool {
	f.itemsMu.Lock()
	defer f.itemsMu.Unlock()

	if pos < 0 || pos >= len(f.items) {
		return false
	}

	if !f.items[pos].Rewind() {
		return false
	}

	f.pos.Store(int64(pos))

	return true
}

// Translate changes pos by a signed delta under a repeat-mode-dependent
// policy. Free always wraps (user-initiated relative Jump). Modal honors
// the configured repeat-mode and aborts with no change when CanTranslate
// forbids moving past an edge under Disabled (automatic end-of-track
// advancement).
func (f *Factory) Translate(delta int, behavior TranslateBehavior) bool {
	if f.Len() == 0 {
		return false
	}

	var mode RepeatMode

	switch behavior {
	case Free:
		mode = Playlist
	case Modal:
		if !f.CanTranslate(delta) {
			return false
		}
		mode = f.State().RepeatMode
	default:
		return false
	}

	length := f.Len()
	pos := f.Pos()

	var next int
	switch mode {
	case Disabled:
		next = pos + delta
		if next < 0 {
			next = 0
		}
	case Track:
		next = pos
	case Playlist:
		next = ((pos+delta)%length + length) % length
	}

	return f.Select(next)
}

// CanTranslate reports whether a translate by delta is permitted under the
// current repeat-mode. Under Disabled, from the first item only a forward
// move is permitted (a one-item playlist permits any non-zero delta); from
// any other item every move is permitted, and a move past the last item
// is then rejected by Select.
func (f *Factory) CanTranslate(delta int) bool {
	mode := f.State().RepeatMode
	pos := f.Pos()
	length := f.Len()

	if mode != Disabled {
		return true
	}

	return (pos > 0 && pos != length-1) ||
		(pos < length && pos != 0) ||
		(pos == 0 && delta > 0) ||
		(pos == length-1 && delta < 0)
}

// Write is the realtime write() entry point: copy frames from the current
// item into dst, and if it produced nothing, auto-advance to the next
// track (Modal). A package-level generic function, not a method, since
// Go methods cannot carry their own type parameters independent of
// Factory's fixed item type.
func Write[D buf.Sample](f *Factory, dst buf.BufMut[D]) int {
	pos := f.Pos()

	f.itemsMu.Lock()
	var item *sound.Sound
	if pos >= 0 && pos < len(f.items) {
		item = f.items[pos]
	}

	n := 0
	if item != nil {
		n = sound.Write[D](item, dst)
	}
	f.itemsMu.Unlock()

	if n == 0 {
		f.Translate(1, Modal)
	}

	return n
}
