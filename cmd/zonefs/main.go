package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/campusfiles/zonefs/internal/logger"
	"github.com/campusfiles/zonefs/pkg/config"
	"github.com/campusfiles/zonefs/pkg/quota"
	"github.com/campusfiles/zonefs/pkg/zone"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

const usage = `zonefs - zone file storage maintenance

Usage:
  zonefs [-config path] scan      -zone name -scope id [-user id]
  zonefs [-config path] reconcile -zone name -scope id [-user id]
  zonefs [-config path] cleanup

Commands:
  scan        Measure a zone's usage against its quota
  reconcile   Realign a zone's metadata with its disk tree
  cleanup     Drop expired clipboards, expanded marks and temp links
`

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zonefs: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runErr error
	switch cmd := flag.Arg(0); cmd {
	case "scan":
		runErr = runScan(ctx, cfg, flag.Args()[1:])
	case "reconcile":
		runErr = runReconcile(ctx, cfg, flag.Args()[1:])
	case "cleanup":
		runErr = runCleanup(ctx, cfg)
	default:
		fmt.Fprintf(os.Stderr, "zonefs: unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "zonefs: %v\n", runErr)
		os.Exit(1)
	}
}

// zoneFlags parses the -zone/-scope/-user triple shared by the per-zone
// commands.
func zoneFlags(name string, args []string) (zone.Kind, int64, int64, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	zoneName := fs.String("zone", "", "Zone name (e.g. admi_doc_crs)")
	scopeID := fs.Int64("scope", 0, "Owning scope id")
	userID := fs.Int64("user", 0, "Secondary scope user id (works/assignments zones)")
	if err := fs.Parse(args); err != nil {
		return zone.Unknown, 0, 0, err
	}

	kind, ok := zone.KindByName(*zoneName)
	if !ok {
		return zone.Unknown, 0, 0, fmt.Errorf("unknown zone %q", *zoneName)
	}
	if *scopeID <= 0 {
		return zone.Unknown, 0, 0, fmt.Errorf("-scope is required")
	}
	return kind, *scopeID, *userID, nil
}

func runScan(ctx context.Context, cfg *config.Config, args []string) error {
	kind, scopeID, userID, err := zoneFlags("scan", args)
	if err != nil {
		return err
	}

	layout := zonepath.Layout{BaseDir: cfg.Storage.BaseDir}
	rootDir, err := layout.ZoneRoot(kind, scopeID, userID)
	if err != nil {
		return err
	}

	size, err := quota.ScanZone(rootDir)
	if err != nil {
		return err
	}

	policies, err := config.CreatePolicies(cfg)
	if err != nil {
		return err
	}
	policy, ok := policies[zone.CanonicalKey(kind)]
	if !ok {
		policy = quota.DefaultPolicy(kind)
	}

	fmt.Printf("zone:    %s (scope %d", kind, scopeID)
	if userID != 0 {
		fmt.Printf(", user %d", userID)
	}
	fmt.Printf(")\nroot:    %s\n", rootDir)
	fmt.Printf("files:   %d / %d\n", size.NumFiles, policy.MaxFiles)
	fmt.Printf("folders: %d / %d\n", size.NumFolders, policy.MaxFolders)
	fmt.Printf("bytes:   %d / %d\n", size.TotalBytes, policy.MaxBytes)
	fmt.Printf("levels:  %d / %d\n", size.MaxLevelsSeen, policy.Clamped().MaxLevels)

	if err := quota.Check(size, policy); err != nil {
		fmt.Printf("status:  OVER QUOTA (%v)\n", err)
	} else {
		fmt.Println("status:  within quota")
	}
	return nil
}

func runReconcile(ctx context.Context, cfg *config.Config, args []string) error {
	kind, scopeID, userID, err := zoneFlags("reconcile", args)
	if err != nil {
		return err
	}

	store, err := config.CreateMetadataStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close metadata store: %v", err)
		}
	}()

	b, err := config.CreateBrowser(cfg, store, nil, nil, nil)
	if err != nil {
		return err
	}

	stats, err := b.Reconcile(ctx, kind, scopeID, userID)
	if err != nil {
		return err
	}
	fmt.Printf("entries: %d\nhealed:  %d\npruned:  %d\n", stats.Entries, stats.Healed, stats.Pruned)
	return nil
}

func runCleanup(ctx context.Context, cfg *config.Config) error {
	store, err := config.CreateMetadataStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close metadata store: %v", err)
		}
	}()

	b, err := config.CreateBrowser(cfg, store, nil, nil, nil)
	if err != nil {
		return err
	}

	stats, err := b.Cleanup(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("clipboards: %d\nexpanded:   %d\ntemp links: %d\n",
		stats.Clipboards, stats.Expanded, stats.TempLinks)
	return nil
}
