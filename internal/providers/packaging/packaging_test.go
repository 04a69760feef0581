package packaging

import (
	"archive/tar"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/storage"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/paths"
)

const clockManifest = `{"id": "clock", "displayName": "Clock", "version": "1.0.0", "author": "Ada", "main": "index.js", "icon": "icon.png"}`

var clockFiles = map[string]string{
	"extension.json": clockManifest,
	"index.js":       "exports.activate = function(api) {}",
}

func newManager(t *testing.T) (*Manager, paths.Layout) {
	t.Helper()
	layout := paths.New(t.TempDir())
	store, err := storage.New(layout.Storage())
	require.NoError(t, err)
	return NewManager(layout, store, nil), layout
}

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func zipFile(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "pkg.bin")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func tarBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	for name, content := range files {
		require.NoError(t, w.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func tarGzFile(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(tarBytes(t, files))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "pkg.tgz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func tarZstFile(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(tarBytes(t, files))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "pkg.tar.zst")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestInstallFormats(t *testing.T) {
	tests := []struct {
		name   string
		source func(t *testing.T) string
		format Format
	}{
		{"directory", func(t *testing.T) string {
			dir := t.TempDir()
			writeTree(t, dir, clockFiles)
			return dir
		}, FormatDir},
		{"zip", func(t *testing.T) string { return zipFile(t, clockFiles) }, FormatZip},
		{"tar.gz", func(t *testing.T) string { return tarGzFile(t, clockFiles) }, FormatTarGzip},
		{"tar.zst", func(t *testing.T) string { return tarZstFile(t, clockFiles) }, FormatTarZstd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, layout := newManager(t)
			src := tt.source(t)

			format, err := DetectFormat(src)
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)

			desc, err := m.InstallExtensionPackage(context.Background(), src)
			require.NoError(t, err)
			assert.Equal(t, "clock", desc.ID)
			assert.Equal(t, "Clock", desc.Name)
			assert.Equal(t, "1.0.0", desc.Version)
			assert.Equal(t, "Ada", desc.Author)
			assert.True(t, desc.Enabled)
			assert.Len(t, desc.Digest, 64)
			assert.Equal(t, filepath.Join(layout.Extensions(), "clock"), desc.LocalPath)
			require.NotNil(t, desc.IconPath)
			assert.Equal(t, filepath.Join(desc.LocalPath, "icon.png"), *desc.IconPath)

			_, err = os.Stat(filepath.Join(desc.LocalPath, "index.js"))
			assert.NoError(t, err)

			staged, err := os.ReadDir(layout.Staging())
			require.NoError(t, err)
			assert.Empty(t, staged)
		})
	}
}

func TestDigestIsStableAcrossFormats(t *testing.T) {
	m1, _ := newManager(t)
	m2, _ := newManager(t)

	a, err := m1.InstallExtensionPackage(context.Background(), zipFile(t, clockFiles))
	require.NoError(t, err)
	b, err := m2.InstallExtensionPackage(context.Background(), tarGzFile(t, clockFiles))
	require.NoError(t, err)
	assert.Equal(t, a.Digest, b.Digest)
}

func TestInstallWrappedDirectory(t *testing.T) {
	m, _ := newManager(t)
	src := zipFile(t, map[string]string{
		"clock-1.0.0/extension.json": clockManifest,
		"clock-1.0.0/index.js":       "exports.activate = function() {}",
	})

	desc, err := m.InstallExtensionPackage(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "clock", desc.ID)
}

func TestInstallRejects(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"zip slip", map[string]string{"../evil.js": "x", "extension.json": clockManifest, "index.js": ""}},
		{"no manifest", map[string]string{"index.js": ""}},
		{"missing entry", map[string]string{"extension.json": clockManifest}},
		{"bad id", map[string]string{"extension.json": `{"id": "../up", "main": "index.js"}`, "index.js": ""}},
		{"bad version", map[string]string{"extension.json": `{"id": "x", "version": "latest"}`, "index.js": ""}},
		{"main escapes", map[string]string{"extension.json": `{"id": "x", "main": "../index.js"}`, "index.js": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, layout := newManager(t)
			_, err := m.InstallExtensionPackage(context.Background(), zipFile(t, tt.files))
			require.Error(t, err)

			installed, err := m.GetInstalledExtensions(context.Background())
			require.NoError(t, err)
			assert.Empty(t, installed)
			_, err = os.Stat(filepath.Join(filepath.Dir(layout.Extensions()), "evil.js"))
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestInstallRejectsUnknownFormat(t *testing.T) {
	m, _ := newManager(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	_, err := m.InstallExtensionPackage(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestInstallEnforcesLimits(t *testing.T) {
	m, _ := newManager(t)
	m.WithLimits(Limits{MaxFiles: 1, MaxBytes: 1 << 20})

	_, err := m.InstallExtensionPackage(context.Background(), zipFile(t, clockFiles))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestReinstallKeepsEnabledFlag(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.InstallExtensionPackage(ctx, zipFile(t, clockFiles))
	require.NoError(t, err)
	require.NoError(t, m.SetExtensionEnabled(ctx, "clock", false))

	updated := map[string]string{
		"extension.json": `{"id": "clock", "version": "1.1.0"}`,
		"index.js":       "exports.activate = function() { /* v2 */ }",
	}
	desc, err := m.InstallExtensionPackage(ctx, zipFile(t, updated))
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", desc.Version)
	assert.False(t, desc.Enabled)

	data, err := os.ReadFile(filepath.Join(desc.LocalPath, "index.js"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "v2")
}

func TestGetInstalledExtensions(t *testing.T) {
	m, layout := newManager(t)
	writeTree(t, filepath.Join(layout.Extensions(), "clock"), clockFiles)
	writeTree(t, filepath.Join(layout.Extensions(), "weather"), map[string]string{
		"extension.yaml": "name: weather\ndisplayName: Weather\nversion: 0.2.0\nauthor:\n  name: Bo\n",
		"index.js":       "",
	})
	writeTree(t, filepath.Join(layout.Extensions(), "notes"), map[string]string{
		"extension.toml": "name = \"notes\"\nversion = \"3\"\nauthor = \"Cy\"\nmain = \"main.js\"\n",
	})
	writeTree(t, filepath.Join(layout.Extensions(), "legacy"), map[string]string{
		"package.json": `{"name": "legacy", "version": "1.0.0", "author": {"name": "Di"}}`,
	})
	writeTree(t, filepath.Join(layout.Extensions(), "broken"), map[string]string{
		"extension.json": `{`,
	})
	writeTree(t, filepath.Join(layout.Extensions(), ".hidden"), clockFiles)
	writeTree(t, layout.Extensions(), map[string]string{"stray.txt": "x"})

	installed, err := m.GetInstalledExtensions(context.Background())
	require.NoError(t, err)
	require.Len(t, installed, 4)

	byID := map[string]int{}
	for i, d := range installed {
		byID[d.ID] = i
	}
	assert.Equal(t, "Weather", installed[byID["weather"]].Name)
	assert.Equal(t, "Bo", installed[byID["weather"]].Author)
	assert.Equal(t, "Cy", installed[byID["notes"]].Author)
	assert.Equal(t, "main.js", installed[byID["notes"]].Main)
	assert.Equal(t, "Di", installed[byID["legacy"]].Author)
	assert.Equal(t, "index.js", installed[byID["legacy"]].Main)
	for _, d := range installed {
		assert.True(t, d.Enabled, d.ID)
		assert.False(t, d.InstalledAt.IsZero(), d.ID)
	}
}

func TestSetExtensionEnabled(t *testing.T) {
	m, layout := newManager(t)
	ctx := context.Background()
	writeTree(t, filepath.Join(layout.Extensions(), "clock"), clockFiles)

	require.NoError(t, m.SetExtensionEnabled(ctx, "clock", false))
	installed, err := m.GetInstalledExtensions(ctx)
	require.NoError(t, err)
	require.Len(t, installed, 1)
	assert.False(t, installed[0].Enabled)

	assert.ErrorIs(t, m.SetExtensionEnabled(ctx, "missing", true), ErrNotInstalled)
	assert.Error(t, m.SetExtensionEnabled(ctx, "../x", true))
}

func TestRemoveExtensionPackage(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	desc, err := m.InstallExtensionPackage(ctx, zipFile(t, clockFiles))
	require.NoError(t, err)
	require.NoError(t, m.SetExtensionEnabled(ctx, "clock", false))

	require.NoError(t, m.RemoveExtensionPackage(ctx, "clock"))
	_, err = os.Stat(desc.LocalPath)
	assert.True(t, os.IsNotExist(err))
	assert.ErrorIs(t, m.RemoveExtensionPackage(ctx, "clock"), ErrNotInstalled)

	// Flag record went with the package, so a fresh install is enabled again
	desc, err = m.InstallExtensionPackage(ctx, zipFile(t, clockFiles))
	require.NoError(t, err)
	assert.True(t, desc.Enabled)
}

func TestInstallFromURL(t *testing.T) {
	archive, err := os.ReadFile(tarGzFile(t, clockFiles))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/clock.tgz" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(archive)
	}))
	t.Cleanup(srv.Close)

	m, _ := newManager(t)
	m.downloader.SetRetry(0, time.Millisecond, time.Millisecond)

	desc, err := m.InstallExtensionPackage(context.Background(), srv.URL+"/clock.tgz")
	require.NoError(t, err)
	assert.Equal(t, "clock", desc.ID)

	_, err = m.InstallExtensionPackage(context.Background(), srv.URL+"/missing.tgz")
	assert.ErrorContains(t, err, "status 404")
}

func TestParseManifestAuthorForms(t *testing.T) {
	m, err := ParseManifest("package.json", []byte(`{"name": "a", "author": "Ada <ada@x>"}`))
	require.NoError(t, err)
	assert.Equal(t, "Ada <ada@x>", m.Author.Name)

	m, err = ParseManifest("extension.yaml", []byte("id: a\nauthor: Ada\n"))
	require.NoError(t, err)
	assert.Equal(t, "Ada", m.Author.Name)
	assert.Equal(t, "extension.yaml", m.File())

	_, err = ParseManifest("extension.ini", []byte(""))
	assert.Error(t, err)
}
