// Package tape holds the wire protocol and socket-path conventions shared
// between the client CLI and the server daemon: a tagged JSON request,
// written once per connection over a Unix domain socket.
package tape

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Prop is a (key, value) string pair, serialized as a 2-element JSON
// array for Config's props list.
type Prop struct {
	Key   string
	Value string
}

func (p Prop) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{p.Key, p.Value})
}

func (p *Prop) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	p.Key, p.Value = pair[0], pair[1]
	return nil
}

// Kind discriminates the Request variants, using a kebab-case wire
// discriminator.
type Kind string

const (
	KindAdd    Kind = "add"
	KindRemove Kind = "remove"
	KindConfig Kind = "config"
	KindSeek   Kind = "seek"
	KindJump   Kind = "jump"
	KindPlay   Kind = "play"
	KindPause  Kind = "pause"
)

// Request is the tagged union of client requests. Exactly one payload
// field is populated, selected by Kind. Go has no internally-tagged-enum
// derive the way serde does, so MarshalJSON/UnmarshalJSON hand-roll the
// same "type" + flattened-fields shape (see DESIGN.md: this is the one
// stdlib-only piece of the wire layer, justified by the absence of a
// tagged-enum JSON library in the example pack).
type Request struct {
	Kind Kind

	// Add
	Paths []string
	// Remove
	IDs []int
	// Config
	Props []Prop
	// Seek
	T uint64
	// Jump
	Pos      int
	Relative bool
}

func NewAdd(paths []string) Request       { return Request{Kind: KindAdd, Paths: paths} }
func NewRemove(ids []int) Request         { return Request{Kind: KindRemove, IDs: ids} }
func NewConfig(props []Prop) Request      { return Request{Kind: KindConfig, Props: props} }
func NewSeek(t uint64) Request            { return Request{Kind: KindSeek, T: t} }
func NewJump(pos int, rel bool) Request   { return Request{Kind: KindJump, Pos: pos, Relative: rel} }
func NewPlay() Request                    { return Request{Kind: KindPlay} }
func NewPause() Request                   { return Request{Kind: KindPause} }

func (r Request) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindAdd:
		return json.Marshal(struct {
			Type  Kind     `json:"type"`
			Paths []string `json:"paths"`
		}{r.Kind, r.Paths})
	case KindRemove:
		return json.Marshal(struct {
			Type Kind  `json:"type"`
			IDs  []int `json:"ids"`
		}{r.Kind, r.IDs})
	case KindConfig:
		return json.Marshal(struct {
			Type  Kind   `json:"type"`
			Props []Prop `json:"props"`
		}{r.Kind, r.Props})
	case KindSeek:
		return json.Marshal(struct {
			Type Kind   `json:"type"`
			T    uint64 `json:"t"`
		}{r.Kind, r.T})
	case KindJump:
		return json.Marshal(struct {
			Type     Kind `json:"type"`
			Pos      int  `json:"pos"`
			Relative bool `json:"relative"`
		}{r.Kind, r.Pos, r.Relative})
	case KindPlay, KindPause:
		return json.Marshal(struct {
			Type Kind `json:"type"`
		}{r.Kind})
	default:
		return nil, fmt.Errorf("tape: unrecognized request kind %q", r.Kind)
	}
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	switch head.Type {
	case KindAdd:
		var body struct {
			Paths []string `json:"paths"`
		}
		if err := dec.Decode(&body); err != nil {
			return err
		}
		*r = NewAdd(body.Paths)
	case KindRemove:
		var body struct {
			IDs []int `json:"ids"`
		}
		if err := dec.Decode(&body); err != nil {
			return err
		}
		*r = NewRemove(body.IDs)
	case KindConfig:
		var body struct {
			Props []Prop `json:"props"`
		}
		if err := dec.Decode(&body); err != nil {
			return err
		}
		*r = NewConfig(body.Props)
	case KindSeek:
		var body struct {
			T uint64 `json:"t"`
		}
		if err := dec.Decode(&body); err != nil {
			return err
		}
		*r = NewSeek(body.T)
	case KindJump:
		var body struct {
			Pos      int  `json:"pos"`
			Relative bool `json:"relative"`
		}
		if err := dec.Decode(&body); err != nil {
			return err
		}
		*r = NewJump(body.Pos, body.Relative)
	case KindPlay:
		*r = NewPlay()
	case KindPause:
		*r = NewPause()
	default:
		return fmt.Errorf("tape: unrecognized request type %q", head.Type)
	}

	return nil
}
