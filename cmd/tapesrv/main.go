// Command tapesrv is the background audio-player daemon: it owns the
// output stream and the playlist, and serves requests over a local Unix
// socket.
package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/n977/tape/internal/tapesrv"
	"github.com/n977/tape/pkg/engine"
	"github.com/n977/tape/pkg/tape"
	"github.com/n977/tape/pkg/types"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	deviceIdx    int
	ringCapacity uint64
	framesPerBuf int
	sampleRate   int
	channels     int
	sampleFormat string
	socketPath   string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "tapesrv",
	Short: "Background audio-player daemon",
	Run:   runServer,
}

func init() {
	rootCmd.Flags().IntVarP(&deviceIdx, "device", "d", 1, "Audio output device index")
	rootCmd.Flags().Uint64VarP(&ringCapacity, "buffer", "b", 256, "Staging ring buffer capacity, in frames")
	rootCmd.Flags().IntVarP(&framesPerBuf, "frames", "f", 512, "Audio frames per PortAudio buffer")
	rootCmd.Flags().IntVar(&sampleRate, "rate", 44100, "Output stream sample rate in Hz")
	rootCmd.Flags().IntVar(&channels, "channels", 2, "Output stream channel count")
	rootCmd.Flags().StringVar(&sampleFormat, "format", "int16", "Output sample format: int16 or int32")
	rootCmd.Flags().StringVar(&socketPath, "socket", "", "Override the daemon's socket path (default: $XDG_RUNTIME_DIR/tape/tape.sock)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logging)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Debug("audio player daemon", "version", version)

	if err := run(); err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		os.Exit(1)
	}
}

func run() error {
	path := socketPath
	if path == "" {
		var err error
		path, err = tape.SocketPath()
		if err != nil {
			return fmt.Errorf("failed to determine socket path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("%s: failed to create runtime directory: %w", filepath.Dir(path), err)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%s: failed to clear stale socket: %w", path, err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("%s: failed to bind to socket: %w", path, err)
	}
	defer ln.Close()

	slog.Info("initializing PortAudio")
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	slog.Info("PortAudio initialized", "version", portaudio.GetVersion())

	eng, err := engine.New(engine.Config{
		DeviceIndex:     deviceIdx,
		FramesPerBuffer: framesPerBuf,
		RingCapacity:    ringCapacity,
		SampleFormat:    sampleFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to construct engine: %w", err)
	}

	srv := tapesrv.New(eng)

	if err := eng.Run(sampleRate, channels, srv.Factory); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	defer eng.Stop()

	if verbose {
		statusDone := make(chan struct{})
		defer close(statusDone)
		go monitorPlaybackStatus(eng, statusDone)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("shutting down")
		ln.Close()
	}()

	slog.Info("listening", "socket", path)
	srv.Run(ln)

	return nil
}

// monitorPlaybackStatus periodically logs the engine's playback counters
// at debug level, the way a buffer-status watcher logs ring fill level.
func monitorPlaybackStatus(mon types.PlaybackMonitor, done chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			status := mon.GetPlaybackStatus()
			slog.Debug("playback status",
				"file", status.FileName,
				"played_samples", status.PlayedSamples,
				"buffered_samples", status.BufferedSamples,
				"elapsed", status.ElapsedTime.Truncate(time.Second))
		case <-done:
			return
		}
	}
}
