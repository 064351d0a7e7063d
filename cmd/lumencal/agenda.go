package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/cyp0633/lumencal/calendar/layout"
	"github.com/cyp0633/lumencal/calendar/storage/memory"
	"github.com/cyp0633/lumencal/calendar/view"
	"github.com/cyp0633/lumencal/internal/xml/calquery"
	"github.com/spf13/cobra"
)

type agendaFlags struct {
	input       string
	date        string
	mode        string
	term        string
	owner       string
	participant string
	calendars   []string
	query       string
}

func newAgendaCommand(a *app) *cobra.Command {
	var f agendaFlags
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Print the computed view of an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.agenda(cmd, f)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "", "iCalendar file to read (defaults to seed_file)")
	flags.StringVar(&f.date, "date", "", "anchor date, YYYY-MM-DD (defaults to today)")
	flags.StringVar(&f.mode, "mode", "", "day, week or month (defaults to default_view)")
	flags.StringVarP(&f.term, "search", "s", "", "free-text search term")
	flags.StringVar(&f.owner, "owner", "", "only events owned by this person")
	flags.StringVar(&f.participant, "participant", "", "only events with this attendee")
	flags.StringSliceVar(&f.calendars, "calendar", nil, "only these calendars (repeatable)")
	flags.StringVar(&f.query, "query", "", "CalDAV calendar-query XML file used as the filter")
	return cmd
}

func (a *app) agenda(cmd *cobra.Command, f agendaFlags) error {
	input := f.input
	if input == "" {
		input = a.cfg.SeedFile
	}
	if input == "" {
		return errNoInput
	}

	store := memory.New(memory.WithLogger(a.logger))
	if err := a.seed(cmd, store, input); err != nil {
		return err
	}

	engine, err := a.engine()
	if err != nil {
		return err
	}
	defer engine.Close()

	opts, err := a.viewOptions()
	if err != nil {
		return err
	}
	opts = append(opts, view.WithLogger(a.logger), view.WithEngine(engine))
	if f.mode != "" {
		mode, err := view.ParseMode(f.mode)
		if err != nil {
			return err
		}
		opts = append(opts, view.WithMode(mode))
	}
	if f.date != "" {
		date, err := flagTime("--date", f.date)
		if err != nil {
			return err
		}
		opts = append(opts, view.WithDate(event.StartOfDay(*date)))
	}

	c := view.New(store, opts...)
	defer c.Close()
	if err := c.Load(cmd.Context()); err != nil {
		return err
	}

	if f.query != "" {
		q, err := readQuery(f.query)
		if err != nil {
			return err
		}
		c.SetFilter(q.Filter)
	}
	if f.term != "" {
		c.SetSearch(f.term)
	}
	if f.owner != "" {
		c.SetOwner(f.owner)
	}
	if f.participant != "" {
		c.SetParticipant(f.participant)
	}
	for _, id := range f.calendars {
		c.ToggleCalendar(id)
	}

	return printAgenda(cmd.OutOrStdout(), c.View())
}

func readQuery(path string) (*calquery.Query, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open query: %w", err)
	}
	defer file.Close()
	return calquery.Parse(file)
}

// printAgenda writes one block per day that has events:
//
//	2025-03-10 Monday
//	  09:00-10:00  Revisión trimestral  [equipo-ventas]
func printAgenda(w io.Writer, snap view.Snapshot) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s view, %s to %s\n", snap.Mode,
		snap.RangeStart.Format(event.DateLayout), snap.RangeEnd.Format(event.DateLayout))

	empty := true
	for _, day := range snap.Days {
		if len(day.Positioned) == 0 {
			continue
		}
		empty = false
		fmt.Fprintf(&b, "\n%s %s\n", day.Key, day.Date.Weekday())
		for _, p := range day.Positioned {
			fmt.Fprintf(&b, "  %s  %s", agendaTime(p), p.Title)
			if p.CalendarID != "" {
				fmt.Fprintf(&b, "  [%s]", p.CalendarID)
			}
			if p.Columns > 1 {
				fmt.Fprintf(&b, "  (%d/%d)", p.Column+1, p.Columns)
			}
			b.WriteByte('\n')
		}
	}
	if empty {
		b.WriteString("\nno events\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func agendaTime(p layout.PositionedEvent) string {
	if p.AllDay {
		return "all day    "
	}
	return fmt.Sprintf("%s-%s", clock(p.StartMinute), clock(p.StartMinute+int(p.Duration().Minutes())))
}

func clock(minutes int) string {
	if minutes >= layout.MinutesPerDay {
		return "24:00"
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
