package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexdobrenko/granola-sync/config"
	"github.com/alexdobrenko/granola-sync/pkg/granola"
	"github.com/alexdobrenko/granola-sync/pkg/meeting"
)

// ShowCommandDeps holds the dependencies for the show command.
type ShowCommandDeps struct {
	LoadConfig func() (*config.Config, error)
}

// NewShowCommand creates the show command.
func NewShowCommand(deps *ShowCommandDeps) *cobra.Command {
	if deps == nil {
		deps = &ShowCommandDeps{LoadConfig: loadConfig}
	}

	cmd := &cobra.Command{
		Use:   "show <id-or-title>",
		Short: "Print one meeting's transcript as markdown",
		Long: `Show renders a single meeting from the cache to stdout without writing
any files. The argument is matched against document IDs first, then as a
case-insensitive substring of meeting titles; the first match wins.`,
		Example: `  granola-sync show 2f6a1c0e-...
  granola-sync show "acme kickoff"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}

			meetings, err := granola.Load(cfg.CachePath)
			if err != nil {
				return err
			}

			m := findMeeting(meetings, args[0])
			if m == nil {
				return fmt.Errorf("no meeting matches %q", args[0])
			}
			if m.Title == "" {
				m.Title = "Untitled Meeting"
			}

			body, err := meeting.Render(m)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), body)
			return nil
		},
	}

	return cmd
}

// findMeeting matches by exact document ID, then by case-insensitive
// title substring. Meetings arrive sorted by ID, so ties resolve
// deterministically.
func findMeeting(meetings []meeting.Meeting, query string) *meeting.Meeting {
	for i := range meetings {
		if meetings[i].ID == query {
			return &meetings[i]
		}
	}

	needle := strings.ToLower(query)
	for i := range meetings {
		if strings.Contains(strings.ToLower(meetings[i].Title), needle) {
			return &meetings[i]
		}
	}
	return nil
}
