// Package backup provides tar.gz-based backup and restore for ClipHub data.
//
// An archive holds manifest.yaml first, then the SQLite database, then the
// config file if one was included. Entries are flat: no directories.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HerbHall/cliphub/internal/version"
)

// ManifestName is the archive entry holding the Manifest.
const ManifestName = "manifest.yaml"

// FormatVersion is the archive layout written by Backup.
const FormatVersion = 1

// DefaultMaxRestoreSize caps the uncompressed bytes Restore reads from an
// archive when RestoreOptions.MaxSize is zero.
const DefaultMaxRestoreSize int64 = 1 << 30

var (
	// ErrInvalidArchive reports an archive Restore refuses to unpack.
	ErrInvalidArchive = errors.New("invalid backup archive")

	// ErrExists reports a restore target that already exists without force.
	ErrExists = errors.New("restore target exists")
)

// Manifest describes an archive.
type Manifest struct {
	Format    int           `yaml:"format"`
	CreatedAt time.Time     `yaml:"created_at"`
	Build     version.Build `yaml:"build"`
	Database  string        `yaml:"database"`
	Config    string        `yaml:"config,omitempty"`
	Clips     int           `yaml:"clips"`
}

// Source is the database being backed up.
type Source interface {
	Path() string
	Checkpoint(ctx context.Context) error
}

// Counter reports how many clips the database holds.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Backup writes a tar.gz archive of the database and the optional config
// file to outputPath. The WAL is checkpointed first so the database file is
// consistent on its own. The archive is written to a temporary file and
// renamed into place, so outputPath never holds a partial archive.
func Backup(ctx context.Context, src Source, clips Counter, configPath, outputPath string) (*Manifest, error) {
	dbPath := src.Path()
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("database file not found: %w", err)
	}
	if err := src.Checkpoint(ctx); err != nil {
		return nil, fmt.Errorf("WAL checkpoint failed: %w", err)
	}

	n, err := clips.Count(ctx)
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		Format:    FormatVersion,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Build:     version.Current(),
		Database:  filepath.Base(dbPath),
		Clips:     n,
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			m.Config = filepath.Base(configPath)
		}
		// A config path that doesn't exist is skipped.
	}
	if m.Config == m.Database || m.Config == ManifestName {
		return nil, fmt.Errorf("config file name %q collides with another archive entry", m.Config)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".cliphub-backup-*")
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeArchive(tmp, m, dbPath, configPath); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		return nil, fmt.Errorf("moving archive into place: %w", err)
	}
	return m, nil
}

func writeArchive(w io.Writer, m *Manifest, dbPath, configPath string) error {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	manifest, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	hdr := &tar.Header{
		Name:    ManifestName,
		Mode:    0o644,
		Size:    int64(len(manifest)),
		ModTime: m.CreatedAt,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("adding manifest to archive: %w", err)
	}
	if _, err := tw.Write(manifest); err != nil {
		return fmt.Errorf("adding manifest to archive: %w", err)
	}

	if err := addFileToTar(tw, dbPath, m.Database); err != nil {
		return fmt.Errorf("adding database to archive: %w", err)
	}
	if m.Config != "" {
		if err := addFileToTar(tw, configPath, m.Config); err != nil {
			return fmt.Errorf("adding config to archive: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finishing archive: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("finishing archive: %w", err)
	}
	return nil
}

// addFileToTar adds a single file to the tar archive under the given name.
func addFileToTar(tw *tar.Writer, filePath, archiveName string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = archiveName

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	_, err = io.Copy(tw, f)
	return err
}

// RestoreOptions controls where Restore unpacks an archive.
type RestoreOptions struct {
	// DataDir receives the database and config file. It is created if
	// missing.
	DataDir string

	// DatabaseName renames the restored database. Empty keeps the archived
	// name.
	DatabaseName string

	// Force overwrites existing files.
	Force bool

	// MaxSize caps the total uncompressed size of the archive entries.
	// Zero means DefaultMaxRestoreSize.
	MaxSize int64
}

// Restore unpacks an archive written by Backup. Every entry is validated
// before anything is written: the manifest must come first, entry names
// must be plain file names, and the database named by the manifest must be
// present. Stale -wal and -shm files next to the restored database are
// removed.
func Restore(ctx context.Context, inputPath string, opts RestoreOptions) (*Manifest, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	limit := opts.MaxSize
	if limit <= 0 {
		limit = DefaultMaxRestoreSize
	}
	m, files, err := readArchive(ctx, f, limit)
	if err != nil {
		return nil, err
	}

	targets := map[string]string{m.Database: m.Database}
	if opts.DatabaseName != "" {
		if !isPlainName(opts.DatabaseName) {
			return nil, fmt.Errorf("database name %q must be a plain file name", opts.DatabaseName)
		}
		targets[m.Database] = opts.DatabaseName
	}
	if m.Config != "" {
		targets[m.Config] = m.Config
	}

	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if !opts.Force {
		for _, name := range targets {
			dest := filepath.Join(opts.DataDir, name)
			if _, err := os.Stat(dest); err == nil {
				return nil, fmt.Errorf("%w: %s (use force to overwrite)", ErrExists, dest)
			}
		}
	}

	for entry, name := range targets {
		dest := filepath.Join(opts.DataDir, name)
		if err := writeFileAtomic(dest, files[entry]); err != nil {
			return nil, fmt.Errorf("restoring %s: %w", name, err)
		}
	}

	dbPath := filepath.Join(opts.DataDir, targets[m.Database])
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("removing stale %s: %w", suffix, err)
		}
	}
	return m, nil
}

// readArchive validates the whole archive and returns its manifest and file
// contents keyed by entry name. At most limit uncompressed bytes are read.
func readArchive(ctx context.Context, r io.Reader, limit int64) (*Manifest, map[string][]byte, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var m *Manifest
	files := make(map[string][]byte)

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			return nil, nil, fmt.Errorf("%w: entry %q is not a regular file", ErrInvalidArchive, hdr.Name)
		}
		if !isPlainName(hdr.Name) {
			return nil, nil, fmt.Errorf("%w: unsafe entry name %q", ErrInvalidArchive, hdr.Name)
		}

		if hdr.Size > limit {
			return nil, nil, fmt.Errorf("%w: entry %q exceeds size limit", ErrInvalidArchive, hdr.Name)
		}
		data, err := io.ReadAll(io.LimitReader(tr, limit+1))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: reading %q: %v", ErrInvalidArchive, hdr.Name, err)
		}
		if int64(len(data)) > limit {
			return nil, nil, fmt.Errorf("%w: entry %q exceeds size limit", ErrInvalidArchive, hdr.Name)
		}
		limit -= int64(len(data))

		if m == nil {
			if hdr.Name != ManifestName {
				return nil, nil, fmt.Errorf("%w: first entry is %q, want %s", ErrInvalidArchive, hdr.Name, ManifestName)
			}
			m = &Manifest{}
			if err := yaml.Unmarshal(data, m); err != nil {
				return nil, nil, fmt.Errorf("%w: manifest: %v", ErrInvalidArchive, err)
			}
			continue
		}
		files[hdr.Name] = data
	}

	if m == nil {
		return nil, nil, fmt.Errorf("%w: empty archive", ErrInvalidArchive)
	}
	if m.Format != FormatVersion {
		return nil, nil, fmt.Errorf("%w: unsupported format %d", ErrInvalidArchive, m.Format)
	}
	if !isPlainName(m.Database) {
		return nil, nil, fmt.Errorf("%w: manifest names database %q", ErrInvalidArchive, m.Database)
	}
	if _, ok := files[m.Database]; !ok {
		return nil, nil, fmt.Errorf("%w: database %q missing", ErrInvalidArchive, m.Database)
	}
	if m.Config != "" {
		if _, ok := files[m.Config]; !ok || !isPlainName(m.Config) {
			return nil, nil, fmt.Errorf("%w: config %q missing", ErrInvalidArchive, m.Config)
		}
	}
	return m, files, nil
}

// isPlainName reports whether name is a bare file name with no path
// components.
func isPlainName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

func writeFileAtomic(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".cliphub-restore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
