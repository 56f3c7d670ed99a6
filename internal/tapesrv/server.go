// Package tapesrv translates requests arriving on the daemon's socket
// into calls on Factory and Engine.
package tapesrv

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"github.com/n977/tape/pkg/engine"
	"github.com/n977/tape/pkg/factory"
	"github.com/n977/tape/pkg/sound"
	"github.com/n977/tape/pkg/tape"
)

// Server owns the shared Factory/Engine pair and dispatches one request
// per accepted connection.
type Server struct {
	Factory *factory.Factory
	Engine  *engine.Engine
}

// New wires a fresh Factory to engine, ready to accept connections.
func New(eng *engine.Engine) *Server {
	return &Server{
		Factory: factory.New(),
		Engine:  eng,
	}
}

// Run accepts connections serially. A failure while serving a connection
// is logged and the loop goes on; an Accept error (including the listener
// being closed at shutdown) is logged and ends the loop.
func (s *Server) Run(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			slog.Warn("failed to accept incoming connection", "error", err)
			return
		}

		if err := s.serve(conn); err != nil {
			slog.Warn("request failed", "error", err)
		}
	}
}

// serve reads one JSON request to EOF from conn, dispatches it, and
// closes the connection. The client writes once and half-closes; we read
// whatever arrives before EOF and never write a response.
func (s *Server) serve(conn net.Conn) error {
	defer conn.Close()

	data, err := io.ReadAll(conn)
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}

	var req tape.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}

	switch req.Kind {
	case tape.KindAdd:
		s.handleAdd(req.Paths)
	case tape.KindRemove:
		s.handleRemove(req.IDs)
	case tape.KindConfig:
		return s.handleConfig(req.Props)
	case tape.KindSeek:
		s.Factory.Seek(float64(req.T))
	case tape.KindJump:
		s.handleJump(req.Pos, req.Relative)
	case tape.KindPlay:
		s.Engine.Play()
	case tape.KindPause:
		s.Engine.Pause()
	default:
		return fmt.Errorf("unrecognized request kind %q", req.Kind)
	}

	return nil
}

// handleAdd expands each path one level deep (regular file verbatim,
// directory shallow-read) and probes/appends the resolved files, then
// transitions playback to Playing.
func (s *Server) handleAdd(paths []string) {
	var files []string

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			slog.Warn("failed to stat path", "path", path, "error", err)
			continue
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			slog.Warn("failed to read directory", "path", path, "error", err)
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}

	for _, path := range files {
		snd, err := sound.New(path)
		if err != nil {
			slog.Warn("failed to probe file", "path", path, "error", err)
			continue
		}
		s.Factory.Push(snd)
	}

	s.Engine.Play()
}

// handleRemove deletes the given indices, tracking the running deletion
// offset so later indices still refer to their pre-removal position.
func (s *Server) handleRemove(ids []int) {
	s.Factory.Map(func(items []*sound.Sound) []*sound.Sound {
		d := 0

		for _, id := range ids {
			i := id - d
			if i < 0 || i >= len(items) {
				continue
			}

			items = append(items[:i], items[i+1:]...)
			d++
		}

		return items
	})
}

// handleConfig projects FactoryState to a generic JSON value, overwrites
// each named field, and re-decodes. Unknown keys are silent no-ops, and
// fields left unmentioned keep their previous value rather than resetting
// to a default.
func (s *Server) handleConfig(props []tape.Prop) error {
	state := s.Factory.State()

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to project state: %w", err)
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return fmt.Errorf("failed to project state: %w", err)
	}

	for _, p := range props {
		if _, ok := asMap[p.Key]; !ok {
			continue // unknown keys are silent no-ops
		}
		asMap[p.Key] = json.RawMessage(fmt.Sprintf("%q", p.Value))
	}

	merged, err := json.Marshal(asMap)
	if err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}

	var next factory.State
	if err := json.Unmarshal(merged, &next); err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}

	s.Factory.SetState(next)

	return nil
}

// handleJump moves the playhead: relative interprets pos as a delta from
// the current position (Free translation, wrapping around both ends),
// absolute selects pos directly when non-negative.
func (s *Server) handleJump(pos int, relative bool) {
	if relative {
		s.Factory.Translate(pos, factory.Free)
		return
	}

	if pos >= 0 {
		s.Factory.Select(pos)
	}
}
