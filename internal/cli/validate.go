package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/showrunner/internal/clock"
	"github.com/roach88/showrunner/internal/rundown"
)

// RundownSummary describes a valid rundown.
type RundownSummary struct {
	Entries       int          `json:"entries"`
	Cues          int          `json:"cues"`
	Blocks        int          `json:"blocks"`
	Delays        int          `json:"delays"`
	Skipped       int          `json:"skipped"`
	FirstStart    string       `json:"firstStart"`
	LastEnd       string       `json:"lastEnd"`
	TotalDuration string       `json:"totalDuration"`
	Order         []CueSummary `json:"order"`
}

// CueSummary is one navigable cue with its scheduled times.
type CueSummary struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Cue      string `json:"cue,omitempty"`
	Title    string `json:"title,omitempty"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Public   bool   `json:"public"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rundown.yaml>",
		Short: "Validate a rundown and print its schedule",
		Long: `Validate a rundown document without starting the runtime.

The document is parsed and its schedule derived exactly as the runtime would
do it: ids must be unique, durations must not be negative and end actions
must be known. Delays and linked starts are applied to the printed times.

Exit codes:
  0 - Rundown is valid
  1 - Rundown is invalid
  2 - Rundown file not found`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Loading rundown %s", path)
	doc, err := rundown.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("rundown not found: %s", path), nil)
		return WrapExitError(ExitCommandError, "rundown not found", err)
	}
	if err == nil {
		var summary RundownSummary
		summary, err = summarize(doc)
		if err == nil {
			return outputSummary(formatter, summary)
		}
	}

	_ = formatter.Error(ErrCodeInvalid, err.Error(), nil)
	if formatter.Format != "json" {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	}
	return WrapExitError(ExitFailure, "validation failed", err)
}

// summarize derives the schedule of doc.
func summarize(doc rundown.Rundown) (RundownSummary, error) {
	ix, err := rundown.NewIndex(doc)
	if err != nil {
		return RundownSummary{}, err
	}

	s := RundownSummary{Entries: len(doc.Entries)}
	for _, e := range doc.Entries {
		switch e.Type {
		case rundown.TypeBlock:
			s.Blocks++
		case rundown.TypeDelay:
			s.Delays++
		default:
			if e.Skip {
				s.Skipped++
			}
		}
	}

	totals := ix.Totals()
	s.Cues = totals.Count
	s.FirstStart = formatClock(totals.FirstStart)
	s.LastEnd = formatClock(clock.NormaliseDay(totals.LastEnd))
	s.TotalDuration = formatClock(totals.TotalDuration)

	s.Order = make([]CueSummary, 0, ix.Len())
	for _, c := range ix.Cues() {
		s.Order = append(s.Order, CueSummary{
			Position: c.Position + 1,
			ID:       c.ID,
			Cue:      c.Cue,
			Title:    c.Title,
			Start:    formatClock(c.ScheduledStart),
			End:      formatClock(clock.NormaliseDay(c.ScheduledEnd)),
			Public:   c.IsPublic,
		})
	}
	return s, nil
}

func outputSummary(f *OutputFormatter, s RundownSummary) error {
	if f.Format == "json" {
		return f.Success(s)
	}

	w := f.Writer
	fmt.Fprintln(w, "✓ Rundown valid")
	fmt.Fprintf(w, "  entries: %d\n", s.Entries)
	fmt.Fprintf(w, "  cues: %d\n", s.Cues)
	fmt.Fprintf(w, "  blocks: %d\n", s.Blocks)
	fmt.Fprintf(w, "  delays: %d\n", s.Delays)
	fmt.Fprintf(w, "  skipped: %d\n", s.Skipped)
	if s.Cues == 0 {
		return nil
	}
	fmt.Fprintf(w, "  first start: %s\n", s.FirstStart)
	fmt.Fprintf(w, "  last end: %s\n", s.LastEnd)
	fmt.Fprintf(w, "  total duration: %s\n", s.TotalDuration)
	fmt.Fprintln(w)
	for _, c := range s.Order {
		label := c.Cue
		if label == "" {
			label = "-"
		}
		public := ""
		if c.Public {
			public = " (public)"
		}
		fmt.Fprintf(w, "  %d. %s [%s] %s-%s %s%s\n", c.Position, c.ID, label, c.Start, c.End, c.Title, public)
	}
	return nil
}

// formatClock renders milliseconds as hh:mm:ss, truncating sub-second parts.
func formatClock(ms int64) string {
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	secs := ms / 1000
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, secs/3600, secs/60%60, secs%60)
}
