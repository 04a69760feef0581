package packaging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/utils"
)

var ErrNotInstalled = errors.New("extension not installed")

const flagPrefix = "pkg:"

// FlagStore persists per-package records
type FlagStore interface {
	GetJSON(key string, v interface{}) (bool, error)
	SetJSON(key string, v interface{}) error
	Delete(key string) error
}

// record is what the host remembers about a package beyond its files
type record struct {
	Enabled     bool      `json:"enabled"`
	Digest      string    `json:"digest,omitempty"`
	InstalledAt time.Time `json:"installed_at"`
}

// Manager implements the packaging service over a paths.Layout
type Manager struct {
	layout     paths.Layout
	store      FlagStore
	hasher     *utils.Hasher
	limits     Limits
	downloader *Downloader
	logger     *logging.Logger
}

// NewManager creates a packaging manager
func NewManager(layout paths.Layout, store FlagStore, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		layout:     layout,
		store:      store,
		hasher:     utils.DefaultHasher(),
		limits:     DefaultLimits(),
		downloader: NewDownloader(DefaultLimits().MaxBytes),
		logger:     logger.Named("packaging"),
	}
}

// WithLimits overrides archive limits
func (m *Manager) WithLimits(l Limits) *Manager {
	m.limits = l
	m.downloader = NewDownloader(l.MaxBytes)
	return m
}

// GetInstalledExtensions scans the extensions directory. Packages with an
// unreadable manifest are logged and left out.
func (m *Manager) GetInstalledExtensions(ctx context.Context) ([]types.ExtensionDescriptor, error) {
	root := m.layout.Extensions()
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create extensions dir: %w", err)
	}

	dirs, err := packageDirs(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	out := make([]types.ExtensionDescriptor, 0, len(dirs))
	for _, dir := range dirs {
		desc, err := m.describe(dir)
		if err != nil {
			m.logger.Warn("skipping package", zap.String("dir", dir), zap.Error(err))
			continue
		}
		out = append(out, *desc)
	}
	return out, nil
}

// SetExtensionEnabled persists the enabled flag of an installed package
func (m *Manager) SetExtensionEnabled(ctx context.Context, id string, enabled bool) error {
	if _, err := m.installedDir(id); err != nil {
		return err
	}
	rec, err := m.record(id)
	if err != nil {
		return err
	}
	rec.Enabled = enabled
	if err := m.store.SetJSON(flagPrefix+id, rec); err != nil {
		return fmt.Errorf("persist flag for %s: %w", id, err)
	}
	return nil
}

// InstallExtensionPackage installs from a directory, archive or URL.
// Reinstalling keeps the package's enabled flag.
func (m *Manager) InstallExtensionPackage(ctx context.Context, source string) (*types.ExtensionDescriptor, error) {
	if err := os.MkdirAll(m.layout.Staging(), 0755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	staging, err := os.MkdirTemp(m.layout.Staging(), "install-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	local := source
	if IsURL(source) {
		local, err = m.downloader.Fetch(ctx, source, staging)
		if err != nil {
			return nil, err
		}
	}

	format, err := DetectFormat(local)
	if err != nil {
		return nil, err
	}
	unpacked := filepath.Join(staging, "pkg")
	if err := Extract(ctx, format, local, unpacked, m.limits); err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(local), err)
	}

	pkgRoot, manifest, err := findPackageRoot(unpacked)
	if err != nil {
		return nil, err
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	id := manifest.ExtensionID()
	if err := paths.ValidateExtensionID(id); err != nil {
		return nil, err
	}
	entry, err := paths.Within(pkgRoot, filepath.FromSlash(mainOrDefault(manifest.Main)))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(entry); err != nil {
		return nil, fmt.Errorf("entry file: %w", err)
	}

	digest, err := Digest(ctx, m.hasher, pkgRoot)
	if err != nil {
		return nil, fmt.Errorf("digest: %w", err)
	}

	dest, err := m.layout.Extension(id)
	if err != nil {
		return nil, err
	}
	if err := swapInto(pkgRoot, dest, staging); err != nil {
		return nil, err
	}

	rec, err := m.record(id)
	if err != nil {
		return nil, err
	}
	rec.Digest = digest
	rec.InstalledAt = time.Now().UTC()
	if err := m.store.SetJSON(flagPrefix+id, rec); err != nil {
		return nil, fmt.Errorf("persist flag for %s: %w", id, err)
	}

	m.logger.Info("package installed",
		zap.String(logging.FieldExtensionID, id),
		zap.String("format", string(format)),
		zap.String("digest", utils.Short(digest)),
	)
	return m.describe(dest)
}

// RemoveExtensionPackage deletes an installed package and its flag record.
// Extension key/value data is kept.
func (m *Manager) RemoveExtensionPackage(ctx context.Context, id string) error {
	dir, err := m.installedDir(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	if err := m.store.Delete(flagPrefix + id); err != nil {
		return fmt.Errorf("remove flag for %s: %w", id, err)
	}
	m.logger.Info("package removed", zap.String(logging.FieldExtensionID, id))
	return nil
}

func (m *Manager) describe(dir string) (*types.ExtensionDescriptor, error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	// The directory name is authoritative
	id := filepath.Base(dir)
	if declared := manifest.ExtensionID(); declared != id {
		m.logger.Debug("manifest id differs from directory",
			zap.String(logging.FieldExtensionID, id),
			zap.String("declared", declared),
		)
	}
	if err := paths.ValidateExtensionID(id); err != nil {
		return nil, err
	}

	rec, err := m.record(id)
	if err != nil {
		return nil, err
	}
	installedAt := rec.InstalledAt
	if installedAt.IsZero() {
		if info, err := os.Stat(dir); err == nil {
			installedAt = info.ModTime().UTC()
		}
	}

	desc := &types.ExtensionDescriptor{
		ID:          id,
		Name:        manifest.Title(),
		Version:     manifest.Version,
		Description: manifest.Description,
		Author:      manifest.Author.Name,
		LocalPath:   dir,
		Main:        mainOrDefault(manifest.Main),
		Enabled:     rec.Enabled,
		Digest:      rec.Digest,
		InstalledAt: installedAt,
	}
	if manifest.Icon != "" {
		if icon, err := paths.Within(dir, filepath.FromSlash(manifest.Icon)); err == nil {
			desc.IconPath = &icon
		}
	}
	return desc, nil
}

// record loads the stored record; unknown packages default to enabled
func (m *Manager) record(id string) (record, error) {
	rec := record{Enabled: true}
	if _, err := m.store.GetJSON(flagPrefix+id, &rec); err != nil {
		return rec, fmt.Errorf("load flag for %s: %w", id, err)
	}
	return rec, nil
}

func (m *Manager) installedDir(id string) (string, error) {
	dir, err := m.layout.Extension(id)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !info.IsDir()) {
		return "", fmt.Errorf("%s: %w", id, ErrNotInstalled)
	}
	if err != nil {
		return "", err
	}
	return dir, nil
}

// findPackageRoot accepts a manifest at the top level or inside a single
// wrapping directory
func findPackageRoot(dir string) (string, *Manifest, error) {
	if m, err := ReadManifest(dir); err == nil {
		return dir, m, nil
	} else if !errors.Is(err, ErrNoManifest) {
		return "", nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", nil, err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		inner := filepath.Join(dir, entries[0].Name())
		m, err := ReadManifest(inner)
		if err != nil {
			return "", nil, err
		}
		return inner, m, nil
	}
	return "", nil, fmt.Errorf("package: %w", ErrNoManifest)
}

// swapInto replaces dest with src, keeping the old copy until the rename succeeds
func swapInto(src, dest, scratch string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	var backup string
	if _, err := os.Stat(dest); err == nil {
		backup = filepath.Join(scratch, "previous")
		if err := os.Rename(dest, backup); err != nil {
			return fmt.Errorf("move previous install: %w", err)
		}
	}
	if err := os.Rename(src, dest); err != nil {
		if backup != "" {
			os.Rename(backup, dest)
		}
		return fmt.Errorf("install into %s: %w", dest, err)
	}
	return nil
}

func mainOrDefault(main string) string {
	if main == "" {
		return types.DefaultMain
	}
	return main
}
