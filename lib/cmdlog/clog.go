// Package cmdlog styles the command and progress log of the drum programs.
package cmdlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mcphysics/drumscan/lib/stage"
)

func isAscii(s string) bool {
	return !strings.ContainsFunc(s, func(r rune) bool {
		switch {
		case r < 7:
			return true
		case r > 6 && r < 14:
			return false
		case r > 13 && r < 32:
			return true
		case r > 127:
			return true
		}
		return false
	})
}

var (
	CmdStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	R1Style  = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	R2Style  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

// Progressf logs a progress line in the command style.
func Progressf(format string, v ...any) {
	log.Print(CmdStyle.Render(fmt.Sprintf(format, v...)))
}

// Resultf logs a result line.
func Resultf(format string, v ...any) {
	log.Print(R2Style.Render(fmt.Sprintf(format, v...)))
}

// FileOptions configures the rotating log file.
type FileOptions struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Setup sets the standard logger's flags and, if opts.Path is set, copies
// the log to a rotating file. The returned closer closes that file.
func Setup(opts FileOptions) io.Closer {
	log.SetFlags(log.Lmicroseconds)
	if opts.Path == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil)
	}
	lj := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, lj))
	return lj
}

// PrettyFuncs wraps the stage controller's raw command interface for
// interactive use. Errors are logged rather than returned.
func PrettyFuncs(c *stage.Controller) (
	query func(string) string,
	bquery func(string),
	cmd func(string),
) {
	query = func(q string) string {
		s, err := c.Query(q)
		if err != nil {
			q = CmdStyle.Render(q)
			log.Printf("query %q: error %s", q, err)
		}
		return s
	}
	bquery = func(q string) {
		a := query(q)
		q = CmdStyle.Render(q)

		if len(a) == 0 {
			log.Print(R1Style.Render("<no response>"))
			return
		}

		if isAscii(a) {
			log.Printf("%s: [%d] %q", q, len(a), a)
		} else if len(a) < 32 {
			log.Printf("%s: [%d] %q (% 2x)", q, len(a), a, []byte(a))
		} else {
			log.Printf("%s: [%d] % 2x", q, len(a), []byte(a))
		}
	}

	cmd = func(s string) {
		if err := c.Command(s); err != nil {
			log.Printf("cmd %s: error %s", CmdStyle.Render(s), err)
		} else {
			log.Printf("%s()", CmdStyle.Render(s))
		}
	}
	return query, bquery, cmd
}
