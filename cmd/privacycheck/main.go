// Command privacycheck analyzes a browser profile's privacy settings and
// cookies, and manages the saved report history.
//
// Usage:
//
//	privacycheck install
//	privacycheck analyze [--json]
//	privacycheck cookies [--json] <url>
//	privacycheck report [--title T] [--html file] [--json] <url>
//	privacycheck history [--json]
//	privacycheck show <id>
//	privacycheck export [--out file] <id>
//	privacycheck clear
//	privacycheck apply <action>
//	privacycheck prefs [--set key=value]...
//	privacycheck status [--socket path]
//	privacycheck selftest [--json]
//	privacycheck version
//
// Every subcommand accepts --config (default $PRIVACYCHECK_CONFIG).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/privacycheck/privacycheck/internal/app"
	"github.com/privacycheck/privacycheck/internal/config"
	"github.com/privacycheck/privacycheck/internal/cookies"
	"github.com/privacycheck/privacycheck/internal/host"
	"github.com/privacycheck/privacycheck/internal/ipc"
	"github.com/privacycheck/privacycheck/internal/privacy"
	"github.com/privacycheck/privacycheck/internal/prefs"
	"github.com/privacycheck/privacycheck/internal/report"
	"github.com/privacycheck/privacycheck/internal/selftest"
	"github.com/privacycheck/privacycheck/pkg/buildinfo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// errUsage marks a command-line mistake; run exits 2 on it.
var errUsage = errors.New("usage")

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *cliEnv, args []string) error
}

var commands = []command{
	{"install", "Write default preferences and an empty history", runInstall},
	{"analyze", "Analyze the profile's privacy settings", runAnalyze},
	{"cookies", "Analyze the cookies sent to <url>", runCookies},
	{"report", "Generate and save a report for <url>", runReport},
	{"history", "List saved reports, newest first", runHistory},
	{"show", "Print a saved report", runShow},
	{"export", "Write a saved report as HTML", runExport},
	{"clear", "Delete the report history", runClear},
	{"apply", "Apply a remediation action", runApply},
	{"prefs", "Show or change preferences", runPrefs},
	{"status", "Ping a running privacyd over its socket", runStatus},
	{"selftest", "Verify the scoring tables and the configured stores", runSelftest},
}

// cliEnv carries the writers and the lazily opened runtime for one invocation.
type cliEnv struct {
	stdout  io.Writer
	stderr  io.Writer
	cfgPath string
	cfg     *config.Config
	rt      *app.Runtime
}

func (e *cliEnv) runtime(ctx context.Context) (*app.Runtime, error) {
	if e.rt != nil {
		return e.rt, nil
	}
	if err := e.loadConfig(); err != nil {
		return nil, err
	}
	logger := log.New(io.Discard, "", 0)
	if os.Getenv("PRIVACYCHECK_DEBUG") != "" {
		logger = log.New(e.stderr, "[privacycheck] ", log.LstdFlags)
	}
	rt, err := app.Build(ctx, e.cfg, app.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	e.rt = rt
	return rt, nil
}

func (e *cliEnv) loadConfig() error {
	if e.cfg != nil {
		return nil
	}
	cfg, err := config.Load(e.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	e.cfg = cfg
	return nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	switch args[0] {
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	case "version", "--version":
		fmt.Fprintln(stdout, buildinfo.String())
		return 0
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printUsage(stderr)
		return 2
	}

	env := &cliEnv{stdout: stdout, stderr: stderr, cfgPath: os.Getenv("PRIVACYCHECK_CONFIG")}
	err := cmd.run(ctx, env, args[1:])
	if env.rt != nil {
		if cerr := env.rt.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "privacycheck - browser privacy checker")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "  privacycheck %s\t%s\n", c.name, c.summary)
	}
	fmt.Fprintf(tw, "  privacycheck version\tPrint build information\n")
	tw.Flush()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Every subcommand accepts --config <file> (default: $PRIVACYCHECK_CONFIG).")
}

// newFlagSet returns a FlagSet with the shared --config flag bound to env.
func newFlagSet(env *cliEnv, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	fs.StringVar(&env.cfgPath, "config", env.cfgPath, "path to privacycheck.yaml")
	return fs
}

func parse(fs *flag.FlagSet, args []string, positional int) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != positional {
		return fmt.Errorf("%w: %s expects %d argument(s), got %d", errUsage, fs.Name(), positional, fs.NArg())
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runInstall(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "install")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	rt, err := env.runtime(ctx)
	if err != nil {
		return err
	}
	if err := rt.Service.Install(ctx); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Initialized preferences at %s\n", env.cfg.Preferences)
	return nil
}

func runAnalyze(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "analyze")
	asJSON := fs.Bool("json", false, "print the analysis as JSON")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	rt, err := env.runtime(ctx)
	if err != nil {
		return err
	}
	a, err := rt.Service.AnalyzePrivacy(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(env.stdout, a)
	}
	printPrivacy(env.stdout, a)
	return nil
}

func runCookies(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "cookies")
	asJSON := fs.Bool("json", false, "print the analysis as JSON")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	rt, err := env.runtime(ctx)
	if err != nil {
		return err
	}
	a, err := rt.Service.CheckCookies(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(env.stdout, a)
	}
	printCookies(env.stdout, a)
	return nil
}

func runReport(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "report")
	title := fs.String("title", "", "page title (default: the url)")
	htmlOut := fs.String("html", "", "also write the report as HTML to this file")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	rt, err := env.runtime(ctx)
	if err != nil {
		return err
	}

	r, err := rt.Service.Scan(ctx, host.Tab{URL: fs.Arg(0), Title: *title})
	if err != nil {
		return err
	}

	if *htmlOut != "" {
		if err := writeHTML(*htmlOut, r); err != nil {
			return err
		}
		fmt.Fprintf(env.stderr, "Wrote %s\n", *htmlOut)
	}
	if *asJSON {
		return writeJSON(env.stdout, r)
	}
	return report.RenderText(env.stdout, r)
}

func runHistory(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "history")
	asJSON := fs.Bool("json", false, "print the history as JSON")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	rt, err := env.runtime(ctx)
	if err != nil {
		return err
	}
	reports, err := rt.Service.History(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(env.stdout, reports)
	}
	if len(reports) == 0 {
		fmt.Fprintln(env.stdout, "No saved reports.")
		return nil
	}
	tw := tabwriter.NewWriter(env.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGENERATED\tRISK\tCVSS\tISSUES\tURL")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Timestamp.Local().Format(time.DateTime), r.OverallRiskLevel,
			r.Summary.MaxCVSS, r.Summary.TotalIssues(), r.URL)
	}
	return tw.Flush()
}

func runShow(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "show")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	rt, err := env.runtime(ctx)
	if err != nil {
		return err
	}
	r, err := rt.Service.Report(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(env.stdout, r)
	}
	return report.RenderText(env.stdout, r)
}

func runExport(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "export")
	out := fs.String("out", "", "output file (default: privacy-report-<date>.html)")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	rt, err := env.runtime(ctx)
	if err != nil {
		return err
	}
	r, err := rt.Service.Report(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = report.ExportFilename(r)
	}
	if path == "-" {
		return report.RenderHTML(env.stdout, r)
	}
	if err := writeHTML(path, r); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Wrote %s\n", path)
	return nil
}

func runClear(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "clear")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	rt, err := env.runtime(ctx)
	if err != nil {
		return err
	}
	if err := rt.Service.ClearHistory(ctx); err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, "Report history cleared.")
	return nil
}

func runApply(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "apply")
	if err := parse(fs, args, 1); err != nil {
		return fmt.Errorf("%w (actions: %s)", err, actionList())
	}
	rt, err := env.runtime(ctx)
	if err != nil {
		return err
	}
	res := rt.Service.ApplySetting(ctx, privacy.Action(fs.Arg(0)))
	if !res.Success {
		return errors.New(res.Message)
	}
	fmt.Fprintln(env.stdout, res.Message)
	return nil
}

func actionList() string {
	var names []string
	for _, a := range privacy.Actions() {
		names = append(names, string(a))
	}
	return strings.Join(names, ", ")
}

// setFlags collects repeated --set key=value flags.
type setFlags []string

func (s *setFlags) String() string     { return strings.Join(*s, ",") }
func (s *setFlags) Set(v string) error { *s = append(*s, v); return nil }

func runPrefs(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "prefs")
	var sets setFlags
	fs.Var(&sets, "set", "set a preference (key=value), repeatable")
	asJSON := fs.Bool("json", false, "print preferences as JSON")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	rt, err := env.runtime(ctx)
	if err != nil {
		return err
	}
	p, err := rt.Service.Preferences(ctx)
	if err != nil {
		return err
	}
	if len(sets) > 0 {
		for _, kv := range sets {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("%w: --set expects key=value, got %q", errUsage, kv)
			}
			if err := p.Set(key, value); err != nil {
				return err
			}
		}
		if err := rt.Service.SavePreferences(ctx, p); err != nil {
			return err
		}
	}
	if *asJSON {
		return writeJSON(env.stdout, p)
	}
	tw := tabwriter.NewWriter(env.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "analyzePrivacy\t%t\n", p.AnalyzePrivacy)
	fmt.Fprintf(tw, "checkCookies\t%t\n", p.CheckCookies)
	fmt.Fprintf(tw, "autoScan\t%t\n", p.AutoScan)
	fmt.Fprintf(tw, "notifications\t%t\n", p.Notifications)
	return tw.Flush()
}

func runStatus(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "status")
	socket := fs.String("socket", "", "privacyd socket (default: from config)")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	path := *socket
	if path == "" {
		if err := env.loadConfig(); err != nil {
			return err
		}
		path = env.cfg.Daemon.SocketPath
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	c, err := ipc.Dial(ctx, path)
	if err != nil {
		return fmt.Errorf("privacyd is not running: %w", err)
	}
	defer c.Close()

	var pong map[string]interface{}
	if err := c.Call(ctx, ipc.MethodPing, nil, &pong); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "privacyd is running (%s)\n", path)
	if v, ok := pong["version"]; ok {
		fmt.Fprintf(env.stdout, "  version: %v\n", v)
	}
	return nil
}

func runSelftest(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "selftest")
	asJSON := fs.Bool("json", false, "print the full report as JSON")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	rt, err := env.runtime(ctx)
	if err != nil {
		return err
	}

	st, err := selftest.GenerateReport(ctx, buildinfo.Version, selftest.Environment{
		Settings: rt.Profile,
		Prefs:    prefs.NewFileStore(env.cfg.Preferences),
		History:  rt.History,
	})
	if *asJSON {
		if perr := selftest.PrintReport(env.stdout, st); perr != nil {
			return perr
		}
		return err
	}

	for _, r := range st.Results {
		fmt.Fprintf(env.stdout, "  [%-4s] %s: %s\n", r.Status, r.Name, r.Message)
		if r.Details != "" && r.Status != selftest.StatusPass {
			fmt.Fprintf(env.stdout, "         %s\n", r.Details)
		}
		if r.Remediation != "" {
			fmt.Fprintf(env.stdout, "         → %s\n", r.Remediation)
		}
	}
	fmt.Fprintf(env.stdout, "\nSummary: %d passed, %d failed, %d warnings, %d skipped\n",
		st.Summary.Passed, st.Summary.Failed, st.Summary.Warnings, st.Summary.Skipped)
	return err
}

func writeHTML(path string, r *report.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := report.RenderHTML(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printPrivacy(w io.Writer, a *privacy.Analysis) {
	fmt.Fprintf(w, "Risk level: %s (max CVSS %.1f, %d issues)\n", a.Summary.RiskLevel, a.Summary.MaxCVSS, a.Summary.TotalIssues)
	if len(a.Details) == 0 {
		fmt.Fprintln(w, "  No privacy settings were analyzed.")
		return
	}
	for _, d := range a.Details {
		icon := "✓"
		if d.IsIssue() {
			icon = "✗"
		}
		fmt.Fprintf(w, "  [%s] %-28s %-8s %.1f\n", icon, d.Name, d.Severity, d.CVSS)
		if !d.IsIssue() {
			continue
		}
		fmt.Fprintf(w, "      → %s", d.Recommendation)
		if d.CanApply {
			fmt.Fprintf(w, " (privacycheck apply %s)", d.ApplyAction)
		}
		fmt.Fprintln(w)
	}
}

func printCookies(w io.Writer, a *cookies.Analysis) {
	if !a.Performed() {
		fmt.Fprintln(w, a.Message)
		return
	}
	fmt.Fprintf(w, "%d cookies: %d secure, %d httpOnly, %d third-party, %d sameSite, %d long-lived\n",
		a.TotalCount, a.Secure, a.HTTPOnly, a.ThirdParty, a.SameSite, a.LongExpiry)
	fmt.Fprintf(w, "Risk level: %s (CVSS %.1f)\n", a.Severity, a.CVSSScore)
	for _, i := range a.Issues {
		fmt.Fprintf(w, "  [✗] %s (%s %.1f)\n      → %s\n", i.Message, i.Severity, i.CVSS, i.Recommendation)
	}
}
