// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sampler/internal/audio"
	"sampler/internal/config"
	applog "sampler/internal/log"
	"sampler/internal/session"
	"sampler/internal/transport"
	"sampler/internal/transport/udp"
	"sampler/internal/tui"
)

// debugLogFile receives log output while the editor owns the terminal.
const debugLogFile = "sampler-debug.log"

// sink is a real-time audio output draining the session's frame source.
type sink interface {
	Start() error
	Stop() error
	Close() error
}

// foreground runs until the user is done with the session.
type foreground func(ctx context.Context, sess *session.Session) error

func newPlayCommand(opts *options) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play a recording through the granular engine",
		Long: "Play loads a recording, renders it and plays the result in a loop.\n" +
			"Parameters and the selection can be changed live over the WebSocket bridge.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			wait := func(ctx context.Context, _ *session.Session) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Playing %s. Press Ctrl+C to stop.\n", filepath.Base(args[0]))
				<-ctx.Done()
				return nil
			}
			return runSession(cmd.Context(), cfg, args[0], !once, wait)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Play the rendered buffer once instead of looping")
	return cmd
}

func newEditCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <file>",
		Short: "Edit parameters interactively while playing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			// The editor owns the terminal.
			if cfg.Debug {
				f, err := os.OpenFile(debugLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return err
				}
				defer f.Close()
				applog.SetOutput(f)
			} else {
				applog.SetOutput(io.Discard)
			}
			defer applog.SetOutput(os.Stderr)

			title := filepath.Base(args[0])
			edit := func(ctx context.Context, sess *session.Session) error {
				return tui.RunEditor(ctx, sess, title)
			}
			return runSession(cmd.Context(), cfg, args[0], true, edit)
		},
	}
}

// runSession loads path, starts playback and the configured transports, and
// runs fg until it returns or the process is interrupted.
func runSession(ctx context.Context, cfg *config.Config, path string, loop bool, fg foreground) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	wave, module, closer, err := prepare(ctx, cfg, path)
	if err != nil {
		return err
	}
	defer closer.Close()

	sess, err := session.New(module, cfg)
	if err != nil {
		return err
	}
	if err := sess.Load(wave); err != nil {
		sess.Close()
		return err
	}
	sess.SetLoop(loop)

	run := func() (err error) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		g, gctx := errgroup.WithContext(ctx)

		// --- 1. Transports ---
		if cfg.Debug {
			sess.AddTransport(transport.NewLoggingTransport())
		}
		if cfg.Transport.WebSocketEnabled {
			wst := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress, sess)
			sess.AddTransport(wst)
			g.Go(func() error { return wst.ListenAndServe(gctx) })
		}
		if cfg.Transport.UDPEnabled {
			tel, terr := startTelemetry(cfg, sess)
			if terr != nil {
				return terr
			}
			defer func() { err = errors.Join(err, tel.Close()) }()
		}

		// --- 2. Render and Playback ---
		sess.Start()
		out, err := openSink(cfg, sess)
		if err != nil {
			return err
		}
		if out != nil {
			if err := out.Start(); err != nil {
				out.Close()
				return fmt.Errorf("start audio output: %w", err)
			}
			defer func() { err = errors.Join(err, out.Close()) }()
		}

		// --- 3. Foreground ---
		g.Go(func() error {
			defer cancel()
			return fg(gctx, sess)
		})
		return g.Wait()
	}

	// The audio callback stops before the session it drains.
	runErr := run()
	if src := sess.Source(); src.UnderrunCount() > 0 {
		applog.Warnf("CLI: %d frame underruns during playback", src.UnderrunCount())
	}
	return errors.Join(runErr, sess.Close())
}

// telemetry is a UDP status publisher together with its socket.
type telemetry struct {
	pub    *udp.UDPPublisher
	sender *udp.UDPSender
}

func (t *telemetry) Close() error {
	return errors.Join(t.pub.Close(), t.sender.Close())
}

func startTelemetry(cfg *config.Config, sess *session.Session) (*telemetry, error) {
	sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
	if err != nil {
		return nil, err
	}
	pub, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, sess, sess.Spectrum())
	if err != nil {
		sender.Close()
		return nil, err
	}
	pub.Start()
	return &telemetry{pub: pub, sender: sender}, nil
}

// openSink returns the configured audio output attached to the session's
// frame source, or nil for the "none" backend.
func openSink(cfg *config.Config, sess *session.Session) (sink, error) {
	switch cfg.Audio.Backend {
	case config.BackendPortAudio:
		if err := audio.Initialize(); err != nil {
			return nil, err
		}
		e, err := audio.NewEngine(&cfg.Audio, sess.Source())
		if err != nil {
			audio.Terminate()
			return nil, err
		}
		return &portAudioSink{Engine: e}, nil
	case config.BackendOto:
		s, err := audio.NewOtoSink(int(cfg.Audio.SampleRate))
		if err != nil {
			return nil, err
		}
		s.Attach(sess.Source())
		return s, nil
	default:
		applog.Infof("CLI: Audio output disabled")
		return nil, nil
	}
}

// portAudioSink terminates PortAudio when the stream closes.
type portAudioSink struct {
	*audio.Engine
}

func (s *portAudioSink) Close() error {
	return errors.Join(s.Engine.Close(), audio.Terminate())
}

// withPortAudio runs fn with PortAudio initialized.
func withPortAudio(fn func() error) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return fn()
}
