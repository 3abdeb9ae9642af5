package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lotas/flowtabs/internal/applog"
	"github.com/lotas/flowtabs/internal/browser"
	"github.com/lotas/flowtabs/internal/config"
	"github.com/lotas/flowtabs/internal/export"
	"github.com/lotas/flowtabs/internal/saving"
	"github.com/lotas/flowtabs/internal/server"
	"github.com/lotas/flowtabs/internal/sessionfile"
	"github.com/lotas/flowtabs/internal/storage"
	"github.com/lotas/flowtabs/internal/tabs"
	"github.com/lotas/flowtabs/internal/tui"
	"github.com/lotas/flowtabs/internal/types"
)

const sleepCheckEvery = time.Minute

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "import":
		err = runImport(os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "help", "--help", "-h":
		printHelp()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
		printHelp()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`flowtabs - tab and tab group session manager

Usage:
  flowtabs serve [flags]      Run the tab manager and its WebSocket API
  flowtabs inspect [flags]    Browse the tabs of a running server
  flowtabs export [flags]     Write the stored session to a file or stdout
  flowtabs import [flags]     Merge a session file or Firefox session into the store
  flowtabs config [flags]     Write the default configuration file

Common flags:
  --config PATH    Configuration file (default ~/.config/flowtabs/config.toml)
  --db PATH        Database file (default ~/.local/share/flowtabs/flowtabs.db)

Serve flags:
  --port N         WebSocket port (default 19191)
  --surface NAME   headless or chrome
  --chrome PATH    Chrome executable

Export flags:
  -o FILE          Output file
  --format NAME    flow (compressed session file), markdown or json

Inspect flags:
  --port N         Port of the running server

Import flags:
  -i FILE          Session file written by export
  --firefox NAME   Firefox profile name ("" picks the default profile)
  --space ID       Space that receives imported Firefox tabs

Environment:
  FLOWTABS_PORT, FLOWTABS_DB, FLOWTABS_LOG_DIR, FLOWTABS_SURFACE
`)
}

// commonFlags registers --config and --db on fs.
func commonFlags(fs *flag.FlagSet) (cfgPath, dbPath *string) {
	cfgPath = fs.String("config", config.DefaultPath(), "configuration file")
	dbPath = fs.String("db", "", "database file")
	return cfgPath, dbPath
}

func loadConfig(cfgPath, dbPath string) (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if cfg.DBPath == "" {
		if cfg.DBPath, err = storage.DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newRegistries builds the window and profile registries from cfg.
func newRegistries(cfg *config.Config) (*browser.Windows, *browser.Profiles, error) {
	profiles := browser.NewProfiles()
	for _, p := range cfg.ProfileList() {
		profiles.AddProfile(p.ID)
		for _, s := range p.Spaces {
			if err := profiles.AddSpace(s, p.ID); err != nil {
				return nil, nil, err
			}
		}
	}
	if cfg.DefaultSpace != "" && !profiles.UseSpace(cfg.DefaultSpace) {
		return nil, nil, fmt.Errorf("default space %q is not declared", cfg.DefaultSpace)
	}
	return browser.NewWindows(), profiles, nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath, dbPath := commonFlags(fs)
	port := fs.Int("port", 0, "WebSocket port")
	surface := fs.String("surface", "", "tab surface: headless or chrome")
	chromePath := fs.String("chrome", "", "Chrome executable")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath, *dbPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *surface != "" {
		cfg.Surface = *surface
	}
	if *chromePath != "" {
		cfg.ChromePath = *chromePath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err == nil {
		if err := applog.Init(cfg.LogDir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
		}
	}
	defer applog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	stores := saving.StoresFor(store)

	windows, profiles, err := newRegistries(cfg)
	if err != nil {
		return err
	}
	var surfaces tabs.SurfaceFactory = &browser.HeadlessFactory{}
	if cfg.Surface == config.SurfaceChrome {
		chrome := browser.NewChromeFactory(ctx, browser.ChromeOptions{ExecPath: cfg.ChromePath})
		defer chrome.Close()
		surfaces = chrome
	}

	srv := server.New(cfg.Port)
	m := tabs.New(tabs.Deps{Windows: windows, Profiles: profiles, Surfaces: surfaces, Notifier: srv})
	defer m.Destroy()

	policy := saving.Policy{SleepAfter: cfg.SleepAfter.Duration, ArchiveAfter: cfg.ArchiveAfter.Duration}
	sess, err := saving.Load(ctx, stores, policy)
	if err != nil {
		return err
	}
	// The dispatcher is not running yet, so this goroutine owns the manager.
	res, err := saving.Restore(ctx, m, sess, windows)
	if err != nil {
		return err
	}
	if res.Windows == 0 {
		windows.Create(cfg.DefaultSpace)
	}

	// writes outlive the signal so the final flush still lands
	saver := saving.NewSaver(context.WithoutCancel(ctx), m, stores)
	defer saver.Close()
	saver.Resync()

	d := server.NewDispatcher(m, srv, windows)
	d.TickEvery = sleepCheckEvery
	d.Tick = func() { saving.SleepIdle(m, policy) }

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe(ctx) }()
	fmt.Printf("flowtabs listening on 127.0.0.1:%d (%d tabs restored)\n", cfg.Port, res.Tabs)

	runErr := make(chan error, 1)
	go func() { runErr <- d.Run(ctx) }()

	select {
	case err = <-serveErr:
		stop()
		<-runErr
	case err = <-runErr:
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ferr := saver.Flush(flushCtx); ferr != nil {
		applog.Error("saver.flush", ferr)
	}
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultPath(), "configuration file")
	port := fs.Int("port", 0, "port of the running server")
	fs.Parse(args)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Port = *port
	}
	p := tea.NewProgram(tui.NewModel(fmt.Sprintf("ws://127.0.0.1:%d/", cfg.Port)), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cfgPath, dbPath := commonFlags(fs)
	outPath := fs.String("o", "", "output file (stdout for markdown and json)")
	format := fs.String("format", "flow", "output format: flow, markdown, json")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath, *dbPath)
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// no policy: an export never archives
	sess, err := saving.Load(context.Background(), saving.StoresFor(store), saving.Policy{})
	if err != nil {
		return err
	}
	now := time.Now()
	sess.SavedAt = now

	var text string
	switch *format {
	case "flow":
		if *outPath == "" {
			return errors.New("export: -o is required for the flow format")
		}
		if err := sessionfile.WriteFile(*outPath, sess); err != nil {
			return err
		}
		fmt.Printf("Exported %d tabs, %d groups, %d folders to %s\n", len(sess.Tabs), len(sess.Groups), len(sess.Folders), *outPath)
		return nil
	case "markdown", "md":
		text = export.Markdown(sess, now)
	case "json":
		if text, err = export.JSON(sess, now); err != nil {
			return err
		}
	default:
		return fmt.Errorf("export: unknown format %q", *format)
	}
	if *outPath == "" {
		fmt.Print(text)
		return nil
	}
	return os.WriteFile(*outPath, []byte(text), 0o644)
}

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	cfgPath, dbPath := commonFlags(fs)
	inPath := fs.String("i", "", "session file")
	ffProfile := fs.String("firefox", "", "Firefox profile name")
	spaceID := fs.String("space", "", "space for Firefox tabs")
	fromFirefox := false
	fs.Parse(reorderArgs(args))
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "firefox" {
			fromFirefox = true
		}
	})
	if (*inPath == "") == !fromFirefox {
		return errors.New("import: give exactly one of -i or --firefox")
	}

	cfg, err := loadConfig(*cfgPath, *dbPath)
	if err != nil {
		return err
	}

	var incoming types.Session
	if fromFirefox {
		dir, err := sessionfile.FindFirefoxProfile(*ffProfile)
		if err != nil {
			return err
		}
		target := sessionfile.Target{ProfileID: cfg.DefaultProfile, SpaceID: cfg.DefaultSpace}
		if *spaceID != "" {
			target.SpaceID = *spaceID
			for _, p := range cfg.ProfileList() {
				for _, s := range p.Spaces {
					if s == *spaceID {
						target.ProfileID = p.ID
					}
				}
			}
		}
		if incoming, err = sessionfile.ImportFirefox(dir, target); err != nil {
			return err
		}
	} else if incoming, err = sessionfile.ReadFile(*inPath); err != nil {
		return err
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	stores := saving.StoresFor(store)

	ctx := context.Background()
	n, err := mergeInto(ctx, cfg, stores, incoming)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d tabs\n", n)
	return nil
}

// mergeInto rebuilds the stored session and incoming in a scratch manager
// and writes the union back. Tabs whose unique id is already stored are
// skipped.
func mergeInto(ctx context.Context, cfg *config.Config, stores saving.Stores, incoming types.Session) (int, error) {
	windows, profiles, err := newRegistries(cfg)
	if err != nil {
		return 0, err
	}
	m := tabs.New(tabs.Deps{Windows: windows, Profiles: profiles})
	defer m.Destroy()

	existing, err := saving.Load(ctx, stores, saving.Policy{})
	if err != nil {
		return 0, err
	}
	if _, err := saving.Restore(ctx, m, existing, windows); err != nil {
		return 0, err
	}
	seen := make(map[string]bool)
	for _, t := range existing.Tabs {
		if t.UniqueID != "" {
			seen[t.UniqueID] = true
		}
	}
	var fresh []types.TabRecord
	for _, t := range incoming.Tabs {
		if t.UniqueID == "" || !seen[t.UniqueID] {
			fresh = append(fresh, t)
		}
	}
	incoming.Tabs = fresh
	res, err := saving.Restore(ctx, m, incoming, windows)
	if err != nil {
		return 0, err
	}

	saver := saving.NewSaver(ctx, m, stores)
	saver.Resync()
	err = saver.Flush(ctx)
	saver.Close()
	if err == nil && saver.Failures() > 0 {
		err = fmt.Errorf("import: %d records failed to save", saver.Failures())
	}
	return res.Tabs, err
}

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	cfgPath := fs.String("config", config.DefaultPath(), "configuration file")
	force := fs.Bool("force", false, "overwrite an existing file")
	fs.Parse(args)

	if _, err := os.Stat(*cfgPath); err == nil && !*force {
		return fmt.Errorf("%s exists (use --force to overwrite)", *cfgPath)
	}
	if err := config.DefaultConfig().Save(*cfgPath); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", *cfgPath)
	return nil
}

// reorderArgs moves flag arguments before positional arguments so that
// flag.Parse handles them correctly (it stops at the first non-flag arg).
// A flag followed by another flag or nothing keeps no value, so
// "--firefox" alone selects the default Firefox profile.
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") {
			if !strings.Contains(args[i], "=") && (i+1 >= len(args) || strings.HasPrefix(args[i+1], "-")) {
				flags = append(flags, args[i]+"=")
				continue
			}
			flags = append(flags, args[i])
			if !strings.Contains(args[i], "=") {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
