package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/unictl/internal/app"
	"github.com/dokzlo13/unictl/internal/config"
	"github.com/dokzlo13/unictl/internal/manifest"
	"github.com/dokzlo13/unictl/internal/reconcile"
	"github.com/dokzlo13/unictl/internal/reconcile/storagegroup"
)

const usage = `Usage: unictl <command> [flags]

Commands:
  host     ensure a host is present or absent
  sg       ensure a storage group is present or absent
  apply    reconcile every resource in a YAML or Lua manifest
  history  show recent reconciliation outcomes

Run "unictl <command> -h" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	ctx, cancel := app.SignalContext()
	defer cancel()

	var err error
	switch args[0] {
	case "host":
		err = runHost(ctx, args[1:], stdout, stderr)
	case "sg", "storage-group":
		err = runStorageGroup(ctx, args[1:], stdout, stderr)
	case "apply":
		err = runApply(ctx, args[1:], stdout, stderr)
	case "history":
		err = runHistory(ctx, args[1:], stdout, stderr)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		log.Error().Err(err).Msg("Command failed")
		return 1
	}
	return 0
}

func runHost(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("host", flag.ContinueOnError)
	opts := bindCommon(fs, stderr)
	var initiators stringList
	name := fs.String("name", "", "Host name")
	fs.Var(&initiators, "initiator", "Initiator WWN (repeatable)")
	state := fs.String("state", "present", "Desired state: present or absent")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := opts.open()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ApplyHost(ctx, manifest.HostParams{
		Name:       *name,
		Initiators: initiators,
		State:      *state,
	})
	if err != nil {
		return err
	}
	return writeJSON(stdout, res)
}

func runStorageGroup(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("sg", flag.ContinueOnError)
	opts := bindCommon(fs, stderr)
	name := fs.String("name", "", "Storage group name")
	srp := fs.String("srp", storagegroup.DefaultSRP, "Storage resource pool")
	emulation := fs.String("emulation", "", "Device emulation, e.g. FBA")
	state := fs.String("state", "present", "Desired state: present or absent")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := opts.open()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ApplyStorageGroup(ctx, manifest.StorageGroupParams{
		Name:      *name,
		SRP:       *srp,
		Emulation: *emulation,
		State:     *state,
	})
	if err != nil {
		return err
	}
	return writeJSON(stdout, res)
}

func runApply(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	opts := bindCommon(fs, stderr)
	file := fs.String("f", "", "Manifest file (.yaml, .yml or .lua)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("apply: -f is required")
	}

	// Logging is configured before the manifest runs so Lua log calls honor it
	cfg, err := opts.config()
	if err != nil {
		return err
	}

	m, err := app.LoadManifest(*file)
	if err != nil {
		return err
	}
	// An explicit -symm-id wins over the manifest, which wins over the config file
	if opts.symmID != "" {
		m.SymmID = opts.symmID
	}

	a, err := opts.newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.Apply(ctx, m)
	if results == nil {
		results = []reconcile.Result{}
	}
	// Partial results are still reported
	if werr := writeJSON(stdout, results); werr != nil && err == nil {
		err = werr
	}
	return err
}

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	opts := bindCommon(fs, stderr)
	limit := fs.Int("n", 20, "Number of entries to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := opts.config()
	if err != nil {
		return err
	}
	entries, err := app.History(ctx, cfg.Ledger, *limit)
	if err != nil {
		return err
	}
	return writeJSON(stdout, entries)
}

// commonOpts are the connection flags shared by every command.
type commonOpts struct {
	configPath string
	url        string
	user       string
	pass       string
	symmID     string
	apiVersion string
	timeout    time.Duration
	skipProbe  bool
	logLevel   string
	ledger     string

	logOut io.Writer
}

func bindCommon(fs *flag.FlagSet, logOut io.Writer) *commonOpts {
	o := &commonOpts{logOut: logOut}
	fs.SetOutput(logOut)
	fs.StringVar(&o.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&o.configPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&o.url, "url", "", "Unisphere URL (default https://127.0.0.1:8443)")
	fs.StringVar(&o.user, "user", "", "Unisphere user")
	fs.StringVar(&o.pass, "pass", "", "Unisphere password (or UNI_PASS)")
	fs.StringVar(&o.symmID, "symm-id", "", "Array serial number")
	fs.StringVar(&o.apiVersion, "api-version", "", "REST API version path segment, e.g. 84")
	fs.DurationVar(&o.timeout, "timeout", 0, "Per-request HTTP timeout")
	fs.BoolVar(&o.skipProbe, "skip-probe", false, "Skip the connectivity probe")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&o.ledger, "ledger", "", "Run history database path")
	return o
}

// config loads the config file (if any), applies flag overrides and sets up logging.
func (o *commonOpts) config() (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	if o.url != "" {
		cfg.Unisphere.URL = o.url
	}
	if o.user != "" {
		cfg.Unisphere.User = o.user
	}
	switch {
	case o.pass != "":
		cfg.Unisphere.Password = config.Secret(o.pass)
	case cfg.Unisphere.Password == "":
		cfg.Unisphere.Password = config.Secret(os.Getenv("UNI_PASS"))
	}
	if o.symmID != "" {
		cfg.Unisphere.SymmID = o.symmID
	}
	if o.apiVersion != "" {
		cfg.Unisphere.APIVersion = o.apiVersion
	}
	if o.timeout > 0 {
		cfg.Unisphere.Timeout = config.Duration(o.timeout)
	}
	if o.skipProbe {
		cfg.Probe.Skip = true
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.ledger != "" {
		cfg.Ledger.Path = o.ledger
	}

	setupLogging(o.logOut, cfg.Log.GetLevel(), cfg.Log.UseJSON, cfg.Log.Colors)
	return cfg, nil
}

func (o *commonOpts) open() (*app.App, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	return o.newApp(cfg)
}

func (o *commonOpts) newApp(cfg *config.Config) (*app.App, error) {
	a, err := app.New(cfg)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("run_id", a.RunID()).Str("config", o.configPath).Msg("Starting unictl")
	return a, nil
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogging(out io.Writer, level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	// stdout carries results; logs go to stderr
	if useJSON {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
