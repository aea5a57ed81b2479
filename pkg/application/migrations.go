package application

import (
	"bytes"
	"context"
	"embed"
	"io"
	"io/fs"
	"path"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

// NewMigrationManager collects the sql migrations each module embeds and
// applies them through a single goose provider. Filenames carry a global
// timestamp prefix, so merged schemas stay ordered across modules.
func NewMigrationManager(pool *pgxpool.Pool) MigrationManager {
	return &migrationManager{pool: pool}
}

type migrationManager struct {
	pool    *pgxpool.Pool
	schemas []*embed.FS
}

func (m *migrationManager) RegisterSchema(fsys ...*embed.FS) {
	m.schemas = append(m.schemas, fsys...)
}

func (m *migrationManager) Run() error {
	merged, err := m.collect()
	if err != nil {
		return err
	}
	if len(merged.names) == 0 {
		return nil
	}
	db := stdlib.OpenDB(*m.pool.Config().ConnConfig)
	defer func() { _ = db.Close() }()

	provider, err := goose.NewProvider(database.DialectPostgres, db, merged)
	if err != nil {
		return errors.Wrap(err, "failed to create migration provider")
	}
	if _, err := provider.Up(context.Background()); err != nil {
		return errors.Wrap(err, "failed to apply migrations")
	}
	return nil
}

func (m *migrationManager) Rollback() error {
	merged, err := m.collect()
	if err != nil {
		return err
	}
	if len(merged.names) == 0 {
		return nil
	}
	db := stdlib.OpenDB(*m.pool.Config().ConnConfig)
	defer func() { _ = db.Close() }()

	provider, err := goose.NewProvider(database.DialectPostgres, db, merged)
	if err != nil {
		return errors.Wrap(err, "failed to create migration provider")
	}
	if _, err := provider.Down(context.Background()); err != nil {
		return errors.Wrap(err, "failed to roll back migration")
	}
	return nil
}

func (m *migrationManager) collect() (*schemaFS, error) {
	merged := &schemaFS{files: make(map[string][]byte)}
	for _, fsys := range m.schemas {
		err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || path.Ext(p) != ".sql" {
				return nil
			}
			name := path.Base(p)
			if _, exists := merged.files[name]; exists {
				return errors.Errorf("duplicate migration %q", name)
			}
			data, err := fs.ReadFile(fsys, p)
			if err != nil {
				return err
			}
			merged.files[name] = data
			merged.names = append(merged.names, name)
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to collect module migrations")
		}
	}
	sort.Strings(merged.names)
	return merged, nil
}

// schemaFS is a flat read-only fs.FS over the merged migration files.
type schemaFS struct {
	files map[string][]byte
	names []string
}

func (s *schemaFS) Open(name string) (fs.File, error) {
	if name == "." {
		return &schemaDir{fs: s}, nil
	}
	data, ok := s.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &schemaFile{info: schemaFileInfo{name: name, size: int64(len(data))}, Reader: bytes.NewReader(data)}, nil
}

func (s *schemaFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if name != "." {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	entries := make([]fs.DirEntry, 0, len(s.names))
	for _, n := range s.names {
		entries = append(entries, fs.FileInfoToDirEntry(schemaFileInfo{name: n, size: int64(len(s.files[n]))}))
	}
	return entries, nil
}

func (s *schemaFS) ReadFile(name string) ([]byte, error) {
	data, ok := s.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *schemaFS) Stat(name string) (fs.FileInfo, error) {
	if name == "." {
		return schemaFileInfo{name: ".", dir: true}, nil
	}
	data, ok := s.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return schemaFileInfo{name: name, size: int64(len(data))}, nil
}

type schemaFile struct {
	info schemaFileInfo
	*bytes.Reader
}

func (f *schemaFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *schemaFile) Close() error               { return nil }

type schemaDir struct {
	fs     *schemaFS
	offset int
}

func (d *schemaDir) Stat() (fs.FileInfo, error) { return schemaFileInfo{name: ".", dir: true}, nil }
func (d *schemaDir) Close() error               { return nil }

func (d *schemaDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: ".", Err: errors.New("is a directory")}
}

func (d *schemaDir) ReadDir(n int) ([]fs.DirEntry, error) {
	entries, err := d.fs.ReadDir(".")
	if err != nil {
		return nil, err
	}
	if d.offset >= len(entries) {
		if n <= 0 {
			return nil, nil
		}
		return nil, io.EOF
	}
	rest := entries[d.offset:]
	if n <= 0 || n > len(rest) {
		n = len(rest)
	}
	d.offset += n
	return rest[:n], nil
}

type schemaFileInfo struct {
	name string
	size int64
	dir  bool
}

func (i schemaFileInfo) Name() string { return i.name }
func (i schemaFileInfo) Size() int64  { return i.size }

func (i schemaFileInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

func (i schemaFileInfo) ModTime() time.Time { return time.Time{} }
func (i schemaFileInfo) IsDir() bool        { return i.dir }
func (i schemaFileInfo) Sys() interface{}   { return nil }
