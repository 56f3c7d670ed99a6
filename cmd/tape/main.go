// Command tape is the thin client controller: each subcommand submits
// one request to the daemon over its Unix socket and exits.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/n977/tape/pkg/tape"

	"github.com/spf13/cobra"
)

var socketPath string

var rootCmd = &cobra.Command{
	Use:   "tape",
	Short: "A terminal audio player",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Override the daemon's socket path (default: $XDG_RUNTIME_DIR/tape/tape.sock)")

	rootCmd.AddCommand(
		addCmd(),
		removeCmd(),
		configCmd(),
		seekCmd(),
		jumpCmd(),
		playCmd(),
		pauseCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>...",
		Short: "Add track(s) to queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := make([]string, len(args))
			for i, p := range args {
				abs, err := filepath.Abs(p)
				if err != nil {
					return fmt.Errorf("%s: failed to resolve path: %w", p, err)
				}
				paths[i] = abs
			}
			return submit(tape.NewAdd(paths))
		},
	}
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <index>...",
		Short: "Remove track(s) from queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int, len(args))
			for i, a := range args {
				n, err := strconv.Atoi(a)
				if err != nil || n < 0 {
					return fmt.Errorf("%q: not a non-negative index", a)
				}
				ids[i] = n
			}
			return submit(tape.NewRemove(ids))
		},
	}
}

func configCmd() *cobra.Command {
	var props []string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configure playback at runtime",
		Long: `Possible properties are:
  repeat-mode=[disabled, track, playlist]     Should player repeat track(s) and how`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed := make([]tape.Prop, 0, len(props))
			for _, p := range props {
				key, value, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("%q: expected KEY=VALUE", p)
				}
				parsed = append(parsed, tape.Prop{Key: key, Value: value})
			}
			return submit(tape.NewConfig(parsed))
		},
	}

	cmd.Flags().StringArrayVarP(&props, "property", "p", nil, "Key-value property pairs separated by the '=' sign")

	return cmd
}

func seekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seek <timestamp>",
		Short: "Seek track currently playing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("%q: not a non-negative integer", args[0])
			}
			return submit(tape.NewSeek(t))
		},
	}
}

func jumpCmd() *cobra.Command {
	var relative bool

	cmd := &cobra.Command{
		Use:   "jump <position>",
		Short: "Select track from current playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%q: not an integer", args[0])
			}
			return submit(tape.NewJump(pos, relative))
		},
	}

	cmd.Flags().BoolVarP(&relative, "relative", "r", false, "Interpret the value as relative to the currently playing track position")

	return cmd
}

func playCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Continue playback",
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(tape.NewPlay())
		},
	}
}

func pauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Stop playback",
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(tape.NewPause())
		},
	}
}

// submit connects to the daemon's socket, writes req as JSON, and
// half-closes the write side before returning — the server reads to EOF
// and never sends a response.
func submit(req tape.Request) error {
	path := socketPath
	if path == "" {
		var err error
		path, err = tape.SocketPath()
		if err != nil {
			return fmt.Errorf("failed to determine socket path: %w", err)
		}
	}

	conn, err := net.Dial("unix", path)
	if err != nil {
		return fmt.Errorf("failed to connect to socket at %s: %w", path, err)
	}
	defer conn.Close()

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	if _, err := conn.Write(body); err != nil {
		return fmt.Errorf("failed to write request: %w", err)
	}

	if uc, ok := conn.(*net.UnixConn); ok {
		if err := uc.CloseWrite(); err != nil {
			slog.Warn("failed to half-close connection", "error", err)
		}
	}

	return nil
}
