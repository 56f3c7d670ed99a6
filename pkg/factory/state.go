package factory

import "fmt"

// RepeatMode is the playlist's end-of-track advance policy.
type RepeatMode int

const (
	// Disabled stops advancing once the edge of the playlist is reached.
	Disabled RepeatMode = iota
	// Track repeats the current item indefinitely.
	Track
	// Playlist wraps from the last item back to the first.
	Playlist
)

func (m RepeatMode) String() string {
	switch m {
	case Disabled:
		return "disabled"
	case Track:
		return "track"
	case Playlist:
		return "playlist"
	default:
		return "disabled"
	}
}

// MarshalJSON encodes RepeatMode as its kebab-case wire name.
func (m RepeatMode) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", m.String())), nil
}

// UnmarshalJSON accepts the three recognized kebab-case names.
func (m *RepeatMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := unquote(data, &s); err != nil {
		return err
	}

	switch s {
	case "disabled":
		*m = Disabled
	case "track":
		*m = Track
	case "playlist":
		*m = Playlist
	default:
		return fmt.Errorf("factory: unrecognized repeat-mode %q", s)
	}

	return nil
}

// unquote strips the surrounding JSON quotes from a string-typed field
// without pulling in encoding/json just for this one helper's use by both
// RepeatMode and State.
func unquote(data []byte, out *string) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("factory: expected a JSON string, got %s", data)
	}
	*out = string(data[1 : len(data)-1])
	return nil
}

// State is the small serializable record Config requests mutate: the
// single recognized field is repeat-mode. Kebab-case on the wire.
type State struct {
	RepeatMode RepeatMode `json:"repeat-mode"`
}

// TranslateBehavior selects how Translate treats the configured
// repeat-mode.
type TranslateBehavior int

const (
	// Free always treats repeat-mode as Playlist (wraps). Used by the
	// user-initiated relative Jump.
	Free TranslateBehavior = iota
	// Modal honors the configured repeat-mode, aborting at a Disabled
	// edge. Used for automatic end-of-track advancement.
	Modal
)
