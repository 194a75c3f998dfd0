// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sampler/internal/audio"
	"sampler/internal/config"
	"sampler/internal/decode"
	"sampler/internal/engine"
	"sampler/internal/engine/wasm"
	"sampler/internal/granular"
	applog "sampler/internal/log"
	"sampler/internal/tui"
	"sampler/pkg/build"
)

// options holds flag values. Flags left unset keep the configuration's value.
type options struct {
	configPath string
	verbose    bool

	backend    string
	mode       string
	device     int
	sampleRate float64
	lowLatency bool

	engine   string
	wasmPath string
	seed     uint64
	debounce time.Duration

	websocket string
	udp       string
}

// Execute builds the command tree and runs it against os.Args.
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}

// NewRootCommand returns the sampler command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{})
}

func newRootCommand(opts *options) *cobra.Command {
	buildInfo := build.GetBuildFlags()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "",
		"Configuration file. Defaults to ./config.yaml or ./sampler.yaml when present")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"Show verbose output")

	// Audio Configuration
	flags.StringVar(&opts.backend, "backend", config.DefaultBackend,
		"Audio output: portaudio, oto or none")
	flags.StringVar(&opts.mode, "mode", config.ModeQueue,
		"Frame supply: queue (rendered playback) or passthrough (live input)")
	flags.IntVarP(&opts.device, "device", "d", config.DefaultDeviceID,
		"Output device ID. Use the 'devices' command to see available devices.")
	flags.Float64VarP(&opts.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.BoolVarP(&opts.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Render Configuration
	flags.StringVar(&opts.engine, "engine", config.DefaultEngine,
		"Engine module: native or wasm")
	flags.StringVar(&opts.wasmPath, "wasm", "",
		"Compiled engine module, used with --engine wasm")
	flags.Uint64Var(&opts.seed, "seed", 1,
		"Grain randomness seed for the native engine")
	flags.DurationVar(&opts.debounce, "debounce", config.DefaultDebounce,
		"Quiescence window before a recompute runs")

	// Transport Configuration
	flags.StringVar(&opts.websocket, "websocket", "",
		"Serve the presentation bridge on this address (e.g. :8080)")
	flags.StringVar(&opts.udp, "udp", "",
		"Send status packets to this address (e.g. 127.0.0.1:9090)")

	rootCmd.AddCommand(
		newPlayCommand(opts),
		newEditCommand(opts),
		newRenderCommand(opts),
		newDevicesCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

// loadConfig reads the configuration and applies the flags the user set.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("verbose") && opts.verbose {
		cfg.Debug = true
	}
	if changed("backend") {
		cfg.Audio.Backend = opts.backend
	}
	if changed("mode") {
		cfg.Audio.Mode = opts.mode
	}
	if changed("device") {
		cfg.Audio.OutputDevice = opts.device
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = opts.sampleRate
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = opts.lowLatency
	}
	if changed("engine") {
		cfg.Render.Engine = opts.engine
	}
	if changed("wasm") {
		cfg.Render.WasmPath = opts.wasmPath
		if !changed("engine") {
			cfg.Render.Engine = config.EngineWasm
		}
	}
	if changed("seed") {
		cfg.Render.Seed = opts.seed
	}
	if changed("debounce") {
		cfg.Render.Debounce = opts.debounce
	}
	if changed("websocket") {
		cfg.Transport.WebSocketEnabled = opts.websocket != ""
		cfg.Transport.WebSocketAddress = opts.websocket
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = opts.udp != ""
		cfg.Transport.UDPTargetAddress = opts.udp
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	applog.Configure(cfg.LogLevel, cfg.Debug)
	return cfg, nil
}

// newModule instantiates the configured engine module. The returned closer
// releases the module runtime.
func newModule(ctx context.Context, cfg *config.Config) (engine.Module, io.Closer, error) {
	switch cfg.Render.Engine {
	case config.EngineWasm:
		m, err := wasm.Load(ctx, cfg.Render.WasmPath)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	default:
		m := granular.New(
			granular.WithSampleRate(cfg.Audio.SampleRate),
			granular.WithSeed(cfg.Render.Seed))
		return m, closerFunc(func() error { return nil }), nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// prepare decodes the recording and instantiates the engine concurrently.
func prepare(ctx context.Context, cfg *config.Config, path string) (decode.Waveform, engine.Module, io.Closer, error) {
	var (
		wave   decode.Waveform
		module engine.Module
		closer io.Closer
	)

	// The module keeps ctx for later calls.
	var g errgroup.Group
	g.Go(func() error {
		var err error
		wave, err = decode.File(path)
		return err
	})
	g.Go(func() error {
		var err error
		module, closer, err = newModule(ctx, cfg)
		return err
	})
	if err := g.Wait(); err != nil {
		if closer != nil {
			closer.Close()
		}
		return decode.Waveform{}, nil, nil, err
	}

	if float64(wave.SampleRate) != cfg.Audio.SampleRate {
		applog.Warnf("CLI: %s is %d Hz, engine runs at %.0f Hz; playback pitch will shift",
			path, wave.SampleRate, cfg.Audio.SampleRate)
	}
	applog.Infof("CLI: Loaded %s (%d samples, %s) with %s engine",
		path, wave.Len(), wave.Duration().Round(time.Millisecond), cfg.Render.Engine)
	return wave, module, closer, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			b := build.GetBuildFlags()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit %s, built %s)\n", b.Name, b.Version, b.Commit, b.Time)
		},
	}
}

func newDevicesCommand() *cobra.Command {
	var pick bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPortAudio(func() error {
				if !pick {
					return audio.ListDevices(cmd.OutOrStdout())
				}
				id, err := tui.PickOutputDevice()
				if err != nil {
					return err
				}
				if id < 0 {
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Selected output device %d. Pass --device %d or set audio.output_device.\n", id, id)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&pick, "interactive", "i", false, "Pick an output device interactively")
	return cmd
}
