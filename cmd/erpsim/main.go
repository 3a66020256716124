package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/erpsim/internal/aggregate"
	"github.com/san-kum/erpsim/internal/analysis"
	"github.com/san-kum/erpsim/internal/automation"
	"github.com/san-kum/erpsim/internal/config"
	"github.com/san-kum/erpsim/internal/export"
	"github.com/san-kum/erpsim/internal/metrics"
	sig "github.com/san-kum/erpsim/internal/signal"
	"github.com/san-kum/erpsim/internal/sim"
	"github.com/san-kum/erpsim/internal/storage"
	"github.com/san-kum/erpsim/internal/tui"
)

var (
	configFile  string
	dataDir     string
	logLevel    string
	metricsAddr string

	presetNames []string
	sets        []string
	saveName    string
	outFile     string
	cumulative  bool
	noisy       bool
	hann        bool
	sweepKey    string
	sweepValues []string
)

// main registers the commands and runs the dashboard when no subcommand is
// given. It exits with status 1 if the command returns an error.
func main() {
	rootCmd := &cobra.Command{
		Use:          "erpsim",
		Short:        "interactive ERP signal simulation",
		SilenceUsage: true,
		RunE:         runDashboard,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (info, debug, trace)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "recompute every tab once and plot the result",
		Args:  cobra.NoArgs,
		RunE:  runHeadless,
	}
	runCmd.Flags().StringArrayVar(&presetNames, "preset", nil, "open a tab from this preset (repeatable)")
	runCmd.Flags().StringArrayVar(&sets, "set", nil, "apply an exported key, e.g. global.seed=3 (repeatable)")
	runCmd.Flags().StringVar(&saveName, "save", "", "save the session under this name")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved sessions",
		Args:  cobra.NoArgs,
		RunE:  listSessions,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [session_id]",
		Short: "plot a saved result",
		Args:  cobra.ExactArgs(1),
		RunE:  plotSession,
	}
	plotCmd.Flags().BoolVar(&cumulative, "cumulative", false, "recompute every tab and plot the sum")

	deleteCmd := &cobra.Command{
		Use:   "delete [session_id]",
		Short: "delete a saved session",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteSession,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [session_id]",
		Short: "export a saved result to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [session_id]",
		Short: "export a saved result as an SVG plot",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default <id>.svg)")
	exportSVGCmd.Flags().BoolVar(&cumulative, "cumulative", false, "recompute every tab and draw the sum")

	spectrumCmd := &cobra.Command{
		Use:   "spectrum [session_id]",
		Short: "frequency analysis of a saved result",
		Args:  cobra.ExactArgs(1),
		RunE:  spectrum,
	}
	spectrumCmd.Flags().BoolVar(&noisy, "noisy", false, "analyze the noisy series instead of the clean one")
	spectrumCmd.Flags().BoolVar(&hann, "hann", false, "apply a Hann window first")

	replayCmd := &cobra.Command{
		Use:   "replay [scenario.yaml]",
		Short: "replay timed edits and report how they coalesce",
		Args:  cobra.ExactArgs(1),
		RunE:  replay,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "recompute once per value of a parameter",
		Args:  cobra.NoArgs,
		RunE:  sweep,
	}
	sweepCmd.Flags().StringArrayVar(&presetNames, "preset", nil, "open a tab from this preset (repeatable)")
	sweepCmd.Flags().StringVar(&sweepKey, "key", "active.intercept", "exported key to vary")
	sweepCmd.Flags().StringSliceVar(&sweepValues, "values", []string{"1", "2", "5", "10"}, "values to try")

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.FileName
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.Save(path, config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, presetsCmd, listCmd, plotCmd, deleteCmd, exportCSVCmd,
		exportSVGCmd, spectrumCmd, replayCmd, sweepCmd, initCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func runDashboard(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	loop := sig.NewLoop(0)
	go func() { _ = loop.Run(ctx) }()
	defer loop.Close()

	workers := &sim.Workers{}
	defer workers.Wait()

	s := e.newSession(loop, loop, workers)
	var tabErr error
	if err := loop.Do(func() { _, tabErr = s.NewTab(e.cfg.DefaultPreset) }); err != nil {
		return err
	}
	if tabErr != nil {
		return tabErr
	}

	opts := tui.Options{Session: s, Presets: e.presets.Names(), Do: loop.Do}
	if st, err := e.openStore(); err == nil {
		defer st.Close()
		opts.Saver = st
	} else {
		e.log.Warn("session store unavailable", "error", err)
	}

	_, err = tea.NewProgram(tui.New(opts), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func runHeadless(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	state, err := parseSets(sets)
	if err != nil {
		return err
	}
	if len(presetNames) == 0 {
		presetNames = []string{e.cfg.DefaultPreset}
	}

	s := e.newSession(nil, nil, nil)
	for _, p := range presetNames {
		if _, err := s.NewTab(p); err != nil {
			return err
		}
	}
	if err := s.Import(state); err != nil {
		return err
	}
	recomputeAll(s)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TAB\tLABEL\tSAMPLES\tSNR\tPEAK\tELAPSED\tERROR")
	for _, t := range s.Registry().Tabs() {
		r, ok := s.Orchestrator().Cache().Get(t.ID)
		if !ok {
			fmt.Fprintf(w, "%d\t%s\t-\t-\t-\t-\tnot computed\n", t.ID, t.Label)
			continue
		}
		printRow(w, t.ID, t.Label, r)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if r, ok := s.ActiveResult(); ok {
		if plot := tui.PlotResult(r, 80, 10); plot != "" {
			fmt.Printf("\n%s\n", plot)
		} else if r.Failed() {
			fmt.Printf("\nactive tab failed: %s\n", r.Err)
		}
	} else if r := s.Current().Get(); r != nil && r.Failed() {
		fmt.Printf("\nrecompute rejected: %s\n", r.Err)
	}
	if s.Registry().Len() > 1 {
		printCumulative(s.Cumulative().Get())
	}

	if saveName != "" {
		st, err := e.openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		r, _ := s.ActiveResult()
		id, err := st.Save(cmd.Context(), saveName, s.Export(), r)
		if err != nil {
			return err
		}
		fmt.Printf("\nsaved: %s\n", id)
	}
	return nil
}

func printRow(w *tabwriter.Writer, id int, label string, r *sim.Result) {
	if r.Failed() {
		fmt.Fprintf(w, "%d\t%s\t-\t-\t-\t%s\t%s\n", id, label, r.Elapsed, r.Err)
		return
	}
	_, peak := metrics.Peak(r.Clean)
	fmt.Fprintf(w, "%d\t%s\t%d\t%.1f dB\t%.2f\t%s\t\n",
		id, label, r.Len(), metrics.SNR(r.Clean, r.Noisy), peak, r.Elapsed)
}

func printCumulative(c aggregate.Cumulative) {
	if plot := tui.PlotCumulative(c, 80, 10); plot != "" {
		fmt.Printf("\n%s\n", plot)
	}
	fmt.Printf("cumulative: %d tabs, reference tab %d", len(c.Included), c.ReferenceTab)
	if len(c.Skipped) > 0 {
		fmt.Printf(", skipped %v", c.Skipped)
	}
	if c.Subjects > 1 {
		fmt.Printf(", %d subjects", c.Subjects)
	}
	fmt.Println()
}

func listPresets(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tBASIS\tFORMULA\tINTERCEPT\tCONTRAST\tCODING")
	for _, name := range e.presets.Names() {
		f, err := e.presets.Preset(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%g\t%s\n", name, f.Basis, f.Formula, f.Intercept, f.Contrast, f.Coding)
	}
	return w.Flush()
}

func listSessions(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tSAMPLES\tERROR")
	for _, m := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			m.ID[:8], m.Name, m.CreatedAt.Format("2006-01-02 15:04:05"), m.Samples, m.Err)
	}
	return w.Flush()
}

// loadSession resolves a saved session by id or id prefix.
func loadSession(ctx context.Context, e *env, ref string) (storage.Session, error) {
	st, err := e.openStore()
	if err != nil {
		return storage.Session{}, err
	}
	defer st.Close()
	return st.Load(ctx, ref)
}

func loadResult(ctx context.Context, e *env, ref string) (storage.Session, error) {
	saved, err := loadSession(ctx, e, ref)
	if err != nil {
		return saved, err
	}
	if saved.Result == nil {
		return saved, fmt.Errorf("session %s has no result", saved.ID)
	}
	if saved.Result.Failed() {
		return saved, fmt.Errorf("session %s failed: %s", saved.ID, saved.Result.Err)
	}
	return saved, nil
}

func plotSession(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	if cumulative {
		saved, err := loadSession(cmd.Context(), e, args[0])
		if err != nil {
			return err
		}
		s, err := e.restore(saved.Params)
		if err != nil {
			return err
		}
		fmt.Printf("session: %s (%s)\n", saved.ID, saved.Name)
		printCumulative(s.Cumulative().Get())
		return nil
	}

	saved, err := loadResult(cmd.Context(), e, args[0])
	if err != nil {
		return err
	}
	r := saved.Result
	fmt.Printf("session: %s\n", saved.ID)
	fmt.Printf("name: %s\n", saved.Name)
	fmt.Printf("samples: %d\n", r.Len())
	fmt.Printf("seed: %d\n\n", r.Seed)
	fmt.Println(tui.PlotResult(r, 80, 12))

	for i, ch := range r.CleanChannels {
		if len(ch) < 2 {
			continue
		}
		fmt.Println()
		fmt.Println(asciigraph.Plot(ch,
			asciigraph.Height(6),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("channel %d (clean)", i+1)),
		))
	}
	return nil
}

func deleteSession(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	saved, err := loadResult(cmd.Context(), e, args[0])
	if err != nil {
		return err
	}
	if outFile == "" {
		return storage.WriteCSV(os.Stdout, saved.Result)
	}
	if err := storage.ExportCSV(outFile, saved.Result); err != nil {
		return err
	}
	fmt.Printf("exported %d samples to %s\n", saved.Result.Len(), outFile)
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	var (
		svg string
		id  string
	)
	if cumulative {
		saved, err := loadSession(cmd.Context(), e, args[0])
		if err != nil {
			return err
		}
		s, err := e.restore(saved.Params)
		if err != nil {
			return err
		}
		id = saved.ID
		svg = export.CumulativeToSVG(s.Cumulative().Get(), 800, 300)
	} else {
		saved, err := loadResult(cmd.Context(), e, args[0])
		if err != nil {
			return err
		}
		id = saved.ID
		svg = export.ResultToSVG(saved.Result, 800, 300)
	}
	if svg == "" {
		return fmt.Errorf("nothing to draw for %s", id)
	}

	path := outFile
	if path == "" {
		path = id[:8] + ".svg"
	}
	if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

func spectrum(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	saved, err := loadResult(cmd.Context(), e, args[0])
	if err != nil {
		return err
	}
	r := saved.Result

	data, label := r.Clean, "clean"
	if noisy {
		data, label = r.Noisy, "noisy"
	}
	sfreq := e.cfg.SamplingRate
	if len(r.Time) > 1 && r.Time[1] > r.Time[0] {
		sfreq = 1 / (r.Time[1] - r.Time[0])
	}

	ps := analysis.PowerSpectrum(data, sfreq)
	if hann {
		ps = analysis.HannSpectrum(data, sfreq)
	}
	if len(ps.Power) < 2 {
		return fmt.Errorf("no data")
	}

	fmt.Printf("frequency analysis: %s\n", saved.ID)
	fmt.Printf("series: %s, %.0f Hz\n\n", label, sfreq)

	plotData := ps.Power[:max(len(ps.Power)/4, 2)]
	fmt.Println(asciigraph.Plot(plotData,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("amplitude spectrum (%s)", label)),
	))
	fmt.Println()

	freq, power := ps.Peak()
	fmt.Printf("dominant frequency: %.3f hz (amplitude %.3f)\n", freq, power)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}
	return nil
}

func replay(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	clock := sig.NewManualClock()
	s := e.newSession(clock, nil, nil)
	if len(sc.Tabs) == 0 {
		if _, err := s.NewTab(e.cfg.DefaultPreset); err != nil {
			return err
		}
	}

	if sc.Name != "" {
		fmt.Printf("scenario: %s\n", sc.Name)
	}
	if sc.Description != "" {
		fmt.Printf("%s\n", sc.Description)
	}

	rep, err := automation.Replay(cmd.Context(), s, clock, sc)
	if err != nil {
		return err
	}
	ok, failed := rep.Published()
	fmt.Printf("steps: %d\n", rep.Steps)
	fmt.Printf("parameter changes: %d\n", rep.Edits)
	fmt.Printf("recomputes: %d (%d ok, %d failed)\n", rep.Fires, ok, failed)
	for _, err := range rep.Errors {
		fmt.Printf("  %v\n", err)
	}

	if r, found := s.ActiveResult(); found {
		fmt.Printf("\n%s\n", tui.PlotResult(r, 80, 10))
	}
	return nil
}

func sweep(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	if len(presetNames) == 0 {
		presetNames = []string{e.cfg.DefaultPreset}
	}
	s := e.newSession(nil, nil, nil)
	for _, p := range presetNames {
		if _, err := s.NewTab(p); err != nil {
			return err
		}
	}

	points, err := automation.Sweep(cmd.Context(), s, sweepKey, sweepValues)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSNR\tPEAK TIME\tPEAK\tERROR\n", strings.ToUpper(sweepKey))
	for _, p := range points {
		if p.Result.Failed() {
			fmt.Fprintf(w, "%s\t-\t-\t-\t%s\n", p.Value, p.Result.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%.1f dB\t%.3f s\t%.2f\t\n", p.Value, p.SNR, p.PeakTime, p.PeakValue)
	}
	return w.Flush()
}
