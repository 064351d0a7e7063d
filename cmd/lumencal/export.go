package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/cyp0633/lumencal/calendar/storage"
	"github.com/cyp0633/lumencal/calendar/storage/memory"
	"github.com/spf13/cobra"
)

var errNoInput = errors.New("no input: pass --input or set seed_file")

type exportFlags struct {
	input     string
	output    string
	from      string
	to        string
	calendars []string
}

func newExportCommand(a *app) *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the events of an iCalendar file back out, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.export(cmd, f)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "", "iCalendar file to read (defaults to seed_file)")
	flags.StringVarP(&f.output, "output", "o", "-", "output file, - for stdout")
	flags.StringVar(&f.from, "from", "", "only events ending at or after this time")
	flags.StringVar(&f.to, "to", "", "only events starting at or before this time")
	flags.StringSliceVar(&f.calendars, "calendar", nil, "only these calendars (repeatable)")
	return cmd
}

func (a *app) export(cmd *cobra.Command, f exportFlags) error {
	input := f.input
	if input == "" {
		input = a.cfg.SeedFile
	}
	if input == "" {
		return errNoInput
	}

	opts, err := exportOptions(f)
	if err != nil {
		return err
	}

	store := memory.New(memory.WithLogger(a.logger))
	if err := a.seed(cmd, store, input); err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if f.output != "" && f.output != "-" {
		file, err := os.Create(f.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		w = file
	}
	return store.Export(cmd.Context(), w, opts)
}

func exportOptions(f exportFlags) (*storage.ListOptions, error) {
	opts := &storage.ListOptions{CalendarIDs: f.calendars}
	var err error
	if opts.Start, err = flagTime("--from", f.from); err != nil {
		return nil, err
	}
	if opts.End, err = flagTime("--to", f.to); err != nil {
		return nil, err
	}
	return opts, nil
}

func flagTime(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, ok := event.ParseTime(value)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q", name, value)
	}
	return &t, nil
}
