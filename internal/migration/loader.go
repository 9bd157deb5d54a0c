package migration

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Source reads migration units from a filesystem. Every call re-reads the
// files; nothing is cached between calls.
type Source struct {
	fsys fs.FS
	dir  string // prefix for FilePath, empty for a bare fs.FS
}

// NewSource returns a Source reading the top level of fsys.
func NewSource(fsys fs.FS) *Source {
	return &Source{fsys: fsys}
}

// NewDirSource returns a Source reading the directory at dir.
func NewDirSource(dir string) *Source {
	return &Source{fsys: os.DirFS(dir), dir: dir}
}

// List reads every migration file and returns the units sorted by ID.
// Subdirectories and hidden files are skipped.
func (s *Source) List() ([]Unit, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectoryRead, err)
	}

	units := make([]Unit, 0, len(entries))
	seen := make(map[string]string, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		id := strings.TrimSuffix(name, path.Ext(name))

		key := strings.ToLower(id)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s and %s", ErrDuplicateID, prev, name)
		}

		seen[key] = name

		u, err := s.readUnit(id, name)
		if err != nil {
			return nil, err
		}

		units = append(units, u)
	}

	return Sort(units), nil
}

// Latest returns the last unit in List order, or nil if there are none.
func (s *Source) Latest() (*Unit, error) {
	units, err := s.List()
	if err != nil {
		return nil, err
	}

	if len(units) == 0 {
		return nil, nil //nolint:nilnil // nil,nil signals "no migrations, no error"
	}

	return &units[len(units)-1], nil
}

func (s *Source) readUnit(id, name string) (Unit, error) {
	filePath := filepath.Join(s.dir, name)

	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return Unit{}, fmt.Errorf("%w %s: %w", ErrFileRead, filePath, err)
	}

	sql := string(data)

	return Unit{
		ID:       id,
		SQL:      sql,
		Checksum: ComputeChecksum(sql),
		FilePath: filePath,
	}, nil
}
