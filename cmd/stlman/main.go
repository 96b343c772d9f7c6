package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jolivier22/stlmanager/internal/config"
	"github.com/jolivier22/stlmanager/internal/gateway"
	"github.com/jolivier22/stlmanager/internal/logging"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	gateway.SetVersion(version)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		usage()
		return errors.New("no command provided")
	}
	switch args[0] {
	case "tui":
		return handleTUI(ctx, args[1:])
	case "status":
		return handleStatus(ctx, args[1:])
	case "scan":
		return handleScan(ctx, args[1:])
	case "tags":
		return handleTags(ctx, args[1:])
	case "dupes":
		return handleDupes(ctx, args[1:])
	case "upload":
		return handleUpload(ctx, args[1:])
	case "fetch":
		return handleFetch(ctx, args[1:])
	case "maintenance":
		return handleMaintenance(ctx, args[1:])
	case "config":
		return handleConfig(ctx, args[1:])
	case "version":
		fmt.Println(version)
		return nil
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func usage() {
	fmt.Println(strings.TrimSpace(`stlman - STL project catalog browser

Usage:
  stlman <command> [flags]

Commands:
  tui               Open the interactive catalog browser
  status            Show server health and disk usage
  scan              Run a reindex (incremental by default, --full for full)
  tags              List tags with usage counts
  dupes             Find likely-duplicate projects
  upload            Upload files into a project folder
  fetch             Download one catalog file to disk
  maintenance       Server maintenance: backfill-dates | fix-tags | reset
  config init       Write a default YAML config file
  config validate   Validate a YAML config file
  config print      Print the loaded config as JSON
  version           Print version
  help              Show this help

Flags:
  --config PATH     Path to YAML config file (or STLMAN_CONFIG env var; default: ~/.config/stlman/config.yml)
  --server URL      Override the server base URL (or STLMAN_SERVER env var)
  --log-level L     Log level: debug|info|warn|error (per command)
  --json            JSON output / JSON logs (per command)
`))
}

type commonFlags struct {
	cfgPath  string
	server   string
	logLevel string
	jsonOut  bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.cfgPath, "config", "", "Path to YAML config file")
	fs.StringVar(&cf.server, "server", "", "Server base URL override")
	fs.StringVar(&cf.logLevel, "log-level", "info", "log level")
	fs.BoolVar(&cf.jsonOut, "json", false, "json output")
	return cf
}

func defaultConfigPath() string {
	if env := os.Getenv("STLMAN_CONFIG"); env != "" {
		return env
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, ".config", "stlman", "config.yml")
	}
	return "config.yml"
}

// loadConfig resolves the config path, applies env and flag overrides, and
// validates. A missing file is not an error: defaults work against a local
// server.
func loadConfig(cf *commonFlags) (*config.Config, error) {
	path := cf.cfgPath
	if path == "" {
		path = defaultConfigPath()
	}
	var c *config.Config
	if _, err := os.Stat(path); err == nil {
		c, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		c = config.Default()
		if h, herr := os.UserHomeDir(); herr == nil && h != "" {
			c.General.DataRoot = filepath.Join(h, ".stlman")
		}
	}
	if env := os.Getenv("STLMAN_SERVER"); env != "" {
		c.Server.BaseURL = env
	}
	if cf.server != "" {
		c.Server.BaseURL = cf.server
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

func newLogger(cf *commonFlags) *logging.Logger {
	return logging.New(cf.logLevel, cf.jsonOut)
}

func handleStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := loadConfig(cf)
	if err != nil {
		return err
	}
	log := newLogger(cf)
	gw, err := gateway.New(c, log)
	if err != nil {
		return err
	}
	status, err := gw.Health(ctx)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	usagev, derr := gw.DiskUsage(ctx)
	if cf.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		out := map[string]any{"status": status, "server": logging.SanitizeURL(c.Server.BaseURL)}
		if derr == nil {
			out["disk"] = usagev
		}
		return enc.Encode(out)
	}
	fmt.Printf("server:  %s\n", logging.SanitizeURL(c.Server.BaseURL))
	fmt.Printf("status:  %s\n", status)
	if derr == nil {
		fmt.Printf("disk:    %d / %d bytes used\n", usagev.Used, usagev.Total)
	}
	return nil
}

func handleScan(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	mode := fs.String("mode", "incremental", "scan mode: full|incremental")
	tagsOnly := fs.Bool("tags-only", false, "reindex tags only")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mode != "full" && *mode != "incremental" {
		return fmt.Errorf("invalid --mode %q (want full or incremental)", *mode)
	}
	c, err := loadConfig(cf)
	if err != nil {
		return err
	}
	log := newLogger(cf)
	gw, err := gateway.New(c, log)
	if err != nil {
		return err
	}
	run := gw.Reindex
	if *tagsOnly {
		run = gw.ReindexTags
	}
	sum, err := run(ctx, *mode)
	if err != nil {
		return err
	}
	if cf.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	log.Infof("scan (%s): added=%d updated=%d removed=%d unchanged=%d",
		*mode, sum.Added, sum.Updated, sum.Removed, sum.Unchanged)
	return nil
}

func handleTags(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tags", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	substr := fs.String("q", "", "substring match instead of the full listing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := loadConfig(cf)
	if err != nil {
		return err
	}
	gw, err := gateway.New(c, newLogger(cf))
	if err != nil {
		return err
	}
	if *substr != "" {
		tags, total, err := gw.SuggestTags(ctx, *substr, 50)
		if err != nil {
			return err
		}
		if cf.jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"total": total, "tags": tags})
		}
		for _, tag := range tags {
			fmt.Println(tag)
		}
		return nil
	}
	counts, total, err := gw.TagCounts(ctx)
	if err != nil {
		return err
	}
	if cf.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"total": total, "tags": counts})
	}
	for _, tc := range counts {
		fmt.Printf("%6d  %s\n", tc.Count, tc.Name)
	}
	return nil
}

// multiFlag collects a repeatable string flag.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func handleDupes(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dupes", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	minTags := fs.Int("min-tags", 0, "minimum shared tags (default from config)")
	limit := fs.Int("limit", 0, "max pairs (default from config)")
	var exclude multiFlag
	fs.Var(&exclude, "exclude", "tag to exclude from matching (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := loadConfig(cf)
	if err != nil {
		return err
	}
	gw, err := gateway.New(c, newLogger(cf))
	if err != nil {
		return err
	}
	if *minTags <= 0 {
		*minTags = c.Dupes.MinSharedTags
	}
	if *limit <= 0 {
		*limit = c.Dupes.Limit
	}
	if len(exclude) == 0 {
		exclude = c.Dupes.Exclude
	}
	pairs, total, err := gw.FindDuplicates(ctx, *minTags, *limit, exclude)
	if err != nil {
		if gateway.IsNotFound(err) {
			return errors.New("duplicate analysis unavailable on this server")
		}
		return err
	}
	if cf.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"total": total, "pairs": pairs})
	}
	for _, p := range pairs {
		fmt.Printf("%3.0f%%  %s  ~  %s  [%s]\n", p.Score*100, p.A.Path, p.B.Path, strings.Join(p.SharedTags, ","))
	}
	return nil
}

func handleUpload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	project := fs.String("path", "", "project folder path on the server")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *project == "" {
		return errors.New("--path is required")
	}
	if fs.NArg() == 0 {
		return errors.New("no files given")
	}
	files := make(map[string][]byte, fs.NArg())
	for _, name := range fs.Args() {
		b, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		files[filepath.Base(name)] = b
	}
	c, err := loadConfig(cf)
	if err != nil {
		return err
	}
	log := newLogger(cf)
	gw, err := gateway.New(c, log)
	if err != nil {
		return err
	}
	patch, err := gw.Upload(ctx, *project, files)
	if err != nil {
		return err
	}
	if cf.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(patch)
	}
	log.Infof("uploaded %d files to %s", len(files), *project)
	return nil
}

func handleFetch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	path := fs.String("path", "", "catalog file path on the server")
	out := fs.String("out", "", "output file (default: basename of --path)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("--path is required")
	}
	dest := *out
	if dest == "" {
		dest = filepath.Base(*path)
	}
	c, err := loadConfig(cf)
	if err != nil {
		return err
	}
	gw, err := gateway.New(c, newLogger(cf))
	if err != nil {
		return err
	}
	b, err := gw.FetchFile(ctx, *path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, b, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", dest, len(b))
	return nil
}

func handleMaintenance(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("maintenance subcommand required: backfill-dates | fix-tags | reset")
	}
	sub := args[0]
	fs := flag.NewFlagSet("maintenance "+sub, flag.ContinueOnError)
	cf := addCommonFlags(fs)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	c, err := loadConfig(cf)
	if err != nil {
		return err
	}
	log := newLogger(cf)
	gw, err := gateway.New(c, log)
	if err != nil {
		return err
	}
	switch sub {
	case "backfill-dates":
		n, err := gw.BackfillDates(ctx)
		if err != nil {
			return err
		}
		log.Infof("backfilled dates on %d projects", n)
		return nil
	case "fix-tags":
		n, err := gw.FixTagsAll(ctx)
		if err != nil {
			return err
		}
		log.Infof("normalized tags on %d projects", n)
		return nil
	case "reset":
		if !*yes {
			return errors.New("reset wipes the server-side index; re-run with --yes to confirm")
		}
		if err := gw.ResetCollection(ctx); err != nil {
			return err
		}
		log.Infof("collection index reset; run 'stlman scan --mode full' to rebuild")
		return nil
	default:
		return fmt.Errorf("unknown maintenance subcommand: %s", sub)
	}
}

func handleConfig(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("config subcommand required: init | validate | print")
	}
	switch args[0] {
	case "init":
		return handleConfigInit(args[1:])
	case "validate":
		return configOp(args[1:], func(c *config.Config, log *logging.Logger) error {
			log.Infof("config: valid")
			return nil
		})
	case "print":
		return configOp(args[1:], func(c *config.Config, log *logging.Logger) error {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(c)
		})
	default:
		return fmt.Errorf("unknown config subcommand: %s", args[0])
	}
}

func configOp(args []string, fn func(*config.Config, *logging.Logger) error) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := cf.cfgPath
	if path == "" {
		path = defaultConfigPath()
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file not found: %s", path)
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	return fn(c, newLogger(cf))
}

func handleConfigInit(args []string) error {
	fs := flag.NewFlagSet("config init", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := cf.cfgPath
	if path == "" {
		path = defaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !*force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(config.Default())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote config to %s\n", path)
	return nil
}
