package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"go-synthwave/clock"
	"go-synthwave/config"
	"go-synthwave/debug"
	"go-synthwave/midi"
	"go-synthwave/sequencer"
	"go-synthwave/theme"
	"go-synthwave/tui"
)

var Version = "dev"

// Command-line overrides. Only flags the user set replace config values.
var flags struct {
	config    string
	backend   string
	tempo     float64
	preset    string
	midiPort  string
	oscHost   string
	oscPort   int
	noSurface bool
	debug     bool
	logPath   string

	bars     int
	watch    bool
	force    bool
	surfaces []string
}

var rootCmd = &cobra.Command{
	Use:   "go-synthwave",
	Short: "A 7-track, 8-bar synthwave step sequencer",
	Long: `go-synthwave loops a fixed synthwave arrangement: bass, pad, arpeggio,
lead and drums, each switched on or off per bar across an 8-bar grid.

Edit the grid from the terminal or from a Launchpad X. Sound comes from
the built-in synth, an external MIDI synth or an OSC server.`,
	Version:      Version,
	SilenceUsage: true,
	RunE:         runTUI,
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play without the terminal UI",
	RunE:  runPlay,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI ports",
	RunE:  runPorts,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the current settings to the config file",
	Long: `init writes the settings in effect, config file plus flags, back to
the config file. Pass --surface for each controller port to auto-connect.`,
	RunE: runInit,
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List arrangements, including those from the config file",
	RunE:  runPresets,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "config file (default ~/.config/go-synthwave/config.yaml)")
	pf.StringVarP(&flags.backend, "backend", "b", "", "sound output: synth, midi, osc or log")
	pf.Float64VarP(&flags.tempo, "tempo", "t", 0, "tempo in BPM")
	pf.StringVarP(&flags.preset, "preset", "p", "", "arrangement to start with")
	pf.StringVar(&flags.midiPort, "midi-port", "", "MIDI output port for the midi backend")
	pf.StringVar(&flags.oscHost, "osc-host", "", "OSC server host")
	pf.IntVar(&flags.oscPort, "osc-port", 0, "OSC server port")
	pf.BoolVar(&flags.noSurface, "no-surface", false, "do not look for a Launchpad")
	pf.BoolVar(&flags.debug, "debug", false, "write debug logs")
	pf.StringVarP(&flags.logPath, "log", "l", "", "debug log file, - for stderr outside the UI (default ~/.config/go-synthwave/debug.log)")

	playCmd.Flags().IntVar(&flags.bars, "bars", 0, "stop after this many bars (0 plays until interrupted)")
	portsCmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "keep watching for surfaces being plugged in")
	initCmd.Flags().BoolVarP(&flags.force, "force", "f", false, "overwrite an existing config file")
	initCmd.Flags().StringArrayVar(&flags.surfaces, "surface", nil, "controller MIDI port to auto-connect (repeatable)")

	rootCmd.AddCommand(playCmd, portsCmd, presetsCmd, initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies any flags that were set.
// headless commands may log to stderr.
func loadConfig(cmd *cobra.Command, headless bool) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.config != "" {
		cfg, err = config.LoadFile(flags.config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	set := cmd.Flags().Changed
	if set("backend") {
		cfg.Backend = flags.backend
	}
	if set("tempo") {
		cfg.Tempo = flags.tempo
	}
	if set("preset") {
		cfg.Preset = flags.preset
	}
	if set("midi-port") {
		cfg.MIDI.Port = flags.midiPort
	}
	if set("osc-host") {
		cfg.OSC.Host = flags.oscHost
	}
	if set("osc-port") {
		cfg.OSC.Port = flags.oscPort
	}
	if set("debug") {
		cfg.Debug = flags.debug
	}
	if set("log") {
		cfg.DebugLog = flags.logPath
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Debug {
		if err := enableDebug(cfg.DebugLog, headless); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	defer debug.Disable()

	m, err := newManager(cfg)
	if err != nil {
		return err
	}
	defer shutdown(m)

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	surf := sequencer.NewSurface(m)
	var dm *midi.DeviceManager
	if !flags.noSurface {
		dm = midi.NewDeviceManager(cfg.SurfaceHints())
		g.Go(func() error { dm.Run(gctx); return nil })
		g.Go(func() error { surf.Run(gctx); return nil })
	}
	g.Go(func() error { return m.Run(gctx) })

	model := tui.NewModel(gctx, m, dm, surf, theme.Default())
	g.Go(func() error {
		defer cancel()
		_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx)).Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})

	return g.Wait()
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	defer debug.Disable()

	m, err := newManager(cfg)
	if err != nil {
		return err
	}
	defer shutdown(m)

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if !flags.noSurface {
		dm := midi.NewDeviceManager(cfg.SurfaceHints())
		surf := sequencer.NewSurface(m)
		g.Go(func() error { dm.Run(gctx); return nil })
		g.Go(func() error { attachSurfaces(gctx, dm, surf); return nil })
		g.Go(func() error { surf.Run(gctx); return nil })
	}
	g.Go(func() error { return m.Run(gctx) })

	if err := m.Start(gctx); err != nil {
		cancel()
		g.Wait()
		return err
	}
	fmt.Printf("playing at %.0f BPM on %s, ctrl+c to stop\n", m.Tempo(), cfg.Backend)

	g.Go(func() error {
		defer cancel()
		return report(gctx, m, flags.bars)
	})
	return g.Wait()
}

// report prints the measure as it changes and returns after bars bars
// (never when bars is 0) or when ctx is done
func report(ctx context.Context, m *sequencer.Manager, bars int) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		st := m.Status()
		if bars > 0 && st.Position >= int64(bars)*clock.TicksPerBar {
			return nil
		}
		if st.Bar != last {
			last = st.Bar
			fmt.Printf("Current measure: %d  (%s)\n", st.Bar+1, clock.FormatPosition(st.Position))
		}
	}
}

func runPorts(cmd *cobra.Command, args []string) error {
	defer midi.CloseDriver()

	pl, err := midi.ScanPorts()
	if err != nil {
		return fmt.Errorf("%w (on macOS: sudo killall coreaudiod midiserver)", err)
	}
	fmt.Println("MIDI inputs:")
	for i, name := range pl.InNames() {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("MIDI outputs:")
	for i, name := range pl.OutNames() {
		fmt.Printf("  %d: %s\n", i, name)
	}
	if !flags.watch {
		return nil
	}

	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	fmt.Println("watching for surfaces, ctrl+c to stop")
	dm := midi.NewDeviceManager(cfg.SurfaceHints())
	go dm.Run(ctx)
	for ev := range dm.Events() {
		switch ev.Type {
		case midi.DeviceConnected:
			fmt.Printf("+ %s (%s)\n", ev.ID, ev.Controller.Type())
		case midi.DeviceDisconnected:
			fmt.Printf("- %s\n", ev.ID)
		}
	}
	return nil
}

func runPresets(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	presets, err := loadPresets(cfg)
	if err != nil {
		return err
	}
	for _, name := range presets.Names() {
		set, err := presets.Lookup(name)
		if err != nil {
			return err
		}
		fmt.Println(name)
		for t := sequencer.Track(0); t < sequencer.NumTracks; t++ {
			fmt.Printf("  %-6s %s\n", t, set[t])
		}
	}
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	defer debug.Disable()

	path := flags.config
	if path == "" {
		if path, err = config.ConfigPath(); err != nil {
			return err
		}
	}
	if err := writeConfig(cfg, path, flags.surfaces, flags.force); err != nil {
		return err
	}
	fmt.Println("wrote", path)
	return nil
}
