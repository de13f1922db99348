package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/campusfiles/zonefs/internal/logger"
	"github.com/campusfiles/zonefs/pkg/browser"
	"github.com/campusfiles/zonefs/pkg/metadata"
	badgerstore "github.com/campusfiles/zonefs/pkg/metadata/badger"
	"github.com/campusfiles/zonefs/pkg/metadata/memory"
	"github.com/campusfiles/zonefs/pkg/metrics"
	"github.com/campusfiles/zonefs/pkg/permission"
	"github.com/campusfiles/zonefs/pkg/quota"
	"github.com/campusfiles/zonefs/pkg/zone"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

// CreateMetadataStore builds the configured metadata store backend.
func CreateMetadataStore(ctx context.Context, cfg *Config) (metadata.Store, error) {
	switch cfg.Metadata.Type {
	case "memory":
		return memory.NewMemoryStore(), nil

	case "badger":
		var badgerCfg badgerstore.Config
		if err := mapstructure.Decode(cfg.Metadata.Badger, &badgerCfg); err != nil {
			return nil, fmt.Errorf("invalid badger config: %w", err)
		}
		store, err := badgerstore.NewStore(ctx, badgerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger database: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown metadata store type: %q", cfg.Metadata.Type)
	}
}

// CreatePolicies converts the quota override section into per-kind
// policies.
func CreatePolicies(cfg *Config) (map[zone.Kind]quota.Policy, error) {
	if len(cfg.Quotas) == 0 {
		return nil, nil
	}
	policies := make(map[zone.Kind]quota.Policy, len(cfg.Quotas))
	for name, q := range cfg.Quotas {
		k, ok := zone.KindByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown zone %q in quota overrides", name)
		}
		policies[zone.CanonicalKey(k)] = quota.Policy{
			MaxFiles:   q.MaxFiles,
			MaxFolders: q.MaxFolders,
			MaxBytes:   q.MaxBytes,
			MaxLevels:  q.MaxLevels,
		}.Clamped()
	}
	return policies, nil
}

// CreateBrowser wires the configured store, quota policies and upload rules
// into a Browser. notifier, assignments and projects are the deployment's
// collaborator services; any of them may be nil.
func CreateBrowser(cfg *Config, store metadata.Store, notifier browser.Notifier,
	assignments permission.AssignmentGate, projects permission.ProjectDirectory) (*browser.Browser, error) {

	logger.SetLevel(cfg.Logging.Level)

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	policies, err := CreatePolicies(cfg)
	if err != nil {
		return nil, err
	}

	perms := permission.NewEngine(store, assignments, projects)
	layout := zonepath.Layout{BaseDir: cfg.Storage.BaseDir}

	return browser.New(store, perms, layout, browser.Options{
		Policies:    policies,
		Uploads:     cfg.Uploads,
		Notifier:    notifier,
		TempLinkDir: cfg.Storage.TempLinkDir,
		TempLinkTTL: cfg.Storage.TempLinkTTL,
	}), nil
}
