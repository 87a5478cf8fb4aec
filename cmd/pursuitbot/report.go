package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/pursuitbot/pkg/recorder"
)

type ReportCommand struct {
	DB      string `long:"db" description:"Session database (default: recorder.path from config)"`
	Session string `short:"s" long:"session" description:"Session ID or unique prefix (default: latest)"`
	HTML    string `short:"o" long:"html" description:"Write an interactive chart to this HTML file"`
	List    bool   `short:"l" long:"list" description:"List recorded sessions"`
}

func (c *ReportCommand) Execute(args []string) error {
	path := c.DB
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Recorder.Path
	}
	if path == "" {
		return fmt.Errorf("no session database; pass --db or set recorder.path")
	}

	rec, err := recorder.Open(path)
	if err != nil {
		return err
	}
	defer rec.Close()

	sessions, err := rec.Sessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return fmt.Errorf("no sessions recorded in %s", path)
	}

	if c.List {
		printSessions(sessions)
		return nil
	}

	sess, err := pickSession(sessions, c.Session)
	if err != nil {
		return err
	}
	samples, err := rec.Samples(sess.ID)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Session %s", sess.ID)))
	fmt.Println(dimStyle.Render(fmt.Sprintf("%s mode, started %s", sess.Mode, sess.StartedAt.Format("2006-01-02 15:04:05"))))
	if sess.Notes != "" {
		fmt.Println(dimStyle.Render(sess.Notes))
	}
	fmt.Println()
	if err := recorder.Summarize(sess.Mode, samples).WriteText(os.Stdout); err != nil {
		return err
	}

	if c.HTML != "" {
		f, err := os.Create(c.HTML)
		if err != nil {
			return err
		}
		if err := recorder.RenderHTML(f, "pursuitbot "+sess.ID, samples); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(successStyle.Render("Chart written to " + c.HTML))
	}
	return nil
}

func pickSession(sessions []recorder.Session, prefix string) (recorder.Session, error) {
	if prefix == "" {
		return sessions[0], nil
	}
	var found []recorder.Session
	for _, s := range sessions {
		if strings.HasPrefix(s.ID, prefix) {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return recorder.Session{}, fmt.Errorf("no session matches %q", prefix)
	case 1:
		return found[0], nil
	default:
		return recorder.Session{}, fmt.Errorf("session prefix %q is ambiguous (%d matches)", prefix, len(found))
	}
}

func printSessions(sessions []recorder.Session) {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.ID[:8],
			s.Mode,
			s.StartedAt.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%d", s.Ticks),
			s.Notes,
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Session", "Mode", "Started", "Ticks", "Notes").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	fmt.Println(t.Render())
}
