// Command vaporctl is the operator's command line for a running supervisor.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"vapor_recovery/internal/models"
	"vapor_recovery/internal/service"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
)

const usage = `usage: vaporctl [--server URL] [--token T] <command> [args]

commands:
  login -u USER -p PASS     print a bearer token
  status                    mode, sensors and cycle
  alarms [--active]         alarm table
  ack KIND                  acknowledge an active alarm
  shutdown                  72-hour shutdown timers
  cycles                    cycle catalog
  start NAME                start a cycle
  stop | pause | resume     control the running cycle
  link suspend|resume       lend the serial link out or take it back
  logs [--from --to --type --limit]
  hash-password PASS        bcrypt hash for auth.password_hash
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "vaporctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	global := pflag.NewFlagSet("vaporctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	server := global.String("server", envOr("VAPOR_SERVER", "http://127.0.0.1:8080"), "supervisor base URL")
	token := global.String("token", os.Getenv("VAPOR_TOKEN"), "bearer token")
	timeout := global.Duration("timeout", 5*time.Second, "request timeout")
	global.Usage = func() { fmt.Fprint(out, usage) }
	if err := global.Parse(args); err != nil {
		return err
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return nil
	}

	cmd, cmdArgs := rest[0], rest[1:]
	c := newClient(*server, *token, *timeout)

	switch cmd {
	case "login":
		return login(c, cmdArgs, out)
	case "status":
		return status(c, out)
	case "alarms":
		fs := pflag.NewFlagSet("alarms", pflag.ContinueOnError)
		active := fs.Bool("active", false, "only active alarms")
		if err := fs.Parse(cmdArgs); err != nil {
			return err
		}
		alarms, err := c.alarms(*active)
		if err != nil {
			return err
		}
		renderAlarms(out, alarms)
		return nil
	case "ack":
		if len(cmdArgs) != 1 {
			return fmt.Errorf("ack: expected one alarm kind")
		}
		return c.ackAlarm(cmdArgs[0])
	case "shutdown":
		timers, err := c.shutdownTimers()
		if err != nil {
			return err
		}
		renderTimers(out, timers, time.Now())
		return nil
	case "cycles":
		seqs, err := c.cycles()
		if err != nil {
			return err
		}
		renderCycles(out, seqs)
		return nil
	case "start":
		if len(cmdArgs) != 1 {
			return fmt.Errorf("start: expected one cycle name")
		}
		st, err := c.startCycle(cmdArgs[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "started %s (%d steps)\n", st.Name, st.StepCount)
		return nil
	case "stop", "pause", "resume":
		return c.cycleAction(cmd)
	case "link":
		if len(cmdArgs) != 1 || (cmdArgs[0] != "suspend" && cmdArgs[0] != "resume") {
			return fmt.Errorf("link: expected suspend or resume")
		}
		suspended, err := c.setLink(cmdArgs[0] == "suspend")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "link suspended: %v\n", suspended)
		return nil
	case "logs":
		return logs(c, cmdArgs, out)
	case "hash-password":
		if len(cmdArgs) != 1 {
			return fmt.Errorf("hash-password: expected one password")
		}
		hash, err := service.HashPassword(cmdArgs[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, hash)
		return nil
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func login(c *client, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	user := fs.StringP("user", "u", "operator", "username")
	pass := fs.StringP("password", "p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tok, err := c.signIn(*user, *pass)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, tok)
	return nil
}

func status(c *client, out io.Writer) error {
	mode, err := c.mode()
	if err != nil {
		return err
	}
	snap, err := c.snapshot()
	if err != nil {
		return err
	}
	cyc, err := c.cycleStatus()
	if err != nil {
		return err
	}
	renderStatus(out, mode, snap, cyc)
	return nil
}

func logs(c *client, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("logs", pflag.ContinueOnError)
	from := fs.String("from", "", "start of range")
	to := fs.String("to", "", "end of range")
	typ := fs.String("type", "", "event type")
	limit := fs.Int("limit", 50, "newest N events")
	if err := fs.Parse(args); err != nil {
		return err
	}
	q := lo.PickBy(map[string]string{
		"from":  *from,
		"to":    *to,
		"type":  *typ,
		"limit": fmt.Sprint(*limit),
	}, func(_ string, v string) bool { return v != "" && v != "0" })
	events, err := c.logs(q)
	if err != nil {
		return err
	}
	renderEvents(out, events)
	return nil
}

func newTable(out io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

func renderStatus(out io.Writer, mode models.ModeStatus, snap models.SensorSnapshot, cyc models.CycleStatus) {
	t := newTable(out, table.Row{"FIELD", "VALUE"})
	t.AppendRows([]table.Row{
		{"mode", fmt.Sprintf("%s (wire %d, rev %d)", mode.Mode, mode.WireCode, mode.Revision)},
		{"pressure", fmt.Sprintf("%.2f IWC", snap.Pressure)},
		{"current", fmt.Sprintf("%.2f A", snap.Current)},
		{"overfill", snap.Overfill},
		{"relays", echoedMode(snap.RelayMode)},
		{"sdcard", snap.SDCard},
		{"stale", snap.Stale},
	})
	t.AppendSeparator()
	if cyc.Running || cyc.Paused {
		t.AppendRows([]table.Row{
			{"cycle", cyc.Name},
			{"step", fmt.Sprintf("%d/%d %s", cyc.StepIndex+1, cyc.StepCount, cyc.StepMode)},
			{"remaining", cyc.Remaining.Round(time.Second)},
			{"paused", cyc.Paused},
		})
	} else {
		t.AppendRow(table.Row{"cycle", "idle"})
	}
	t.Render()
}

// echoedMode names the relay mode the device reports back.
func echoedMode(code int) string {
	if m, ok := models.ModeForWireCode(code); ok {
		return fmt.Sprintf("%s (%d)", m, code)
	}
	return fmt.Sprintf("unknown (%d)", code)
}

func renderAlarms(out io.Writer, alarms []models.Alarm) {
	t := newTable(out, table.Row{"KIND", "STATE", "SINCE", "ACK"})
	for _, a := range alarms {
		since := ""
		if !a.Since.IsZero() {
			since = a.Since.Local().Format(time.DateTime)
		}
		t.AppendRow(table.Row{a.Kind, a.State, since, a.Acknowledged})
	}
	t.Render()
}

func renderTimers(out io.Writer, timers []models.ShutdownTimer, now time.Time) {
	t := newTable(out, table.Row{"CATEGORY", "ONSET", "ELAPSED", "STAGE", "SHUTDOWN"})
	for _, tm := range timers {
		t.AppendRow(table.Row{
			tm.Category,
			tm.Onset.Local().Format(time.DateTime),
			now.Sub(tm.Onset).Truncate(time.Minute),
			tm.StageName,
			tm.ShutdownSent,
		})
	}
	t.Render()
}

func renderCycles(out io.Writer, seqs []models.CycleSequence) {
	t := newTable(out, table.Row{"NAME", "STEPS", "TOTAL", "MODES"})
	for _, s := range seqs {
		modes := lo.Uniq(lo.Map(s.Steps, func(st models.CycleStep, _ int) string { return string(st.Mode) }))
		t.AppendRow(table.Row{s.Name, len(s.Steps), s.TotalDuration(), strings.Join(modes, ",")})
	}
	t.Render()
}

func renderEvents(out io.Writer, events []models.Event) {
	t := newTable(out, table.Row{"TIME", "TYPE", "DESCRIPTION"})
	for _, e := range events {
		t.AppendRow(table.Row{e.OccurredAt.Local().Format(time.DateTime), e.Type, e.Description})
	}
	t.Render()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
