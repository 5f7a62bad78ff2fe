// ABOUTME: File repository for book documents, one JSON file per book
// ABOUTME: Saves are atomic: temp file in the same directory, fsync, rename

package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nainya/parajoin/pkg/document"
)

const fileExt = ".json"

// Options configures a Repo
type Options struct {
	Dir       string      // data directory (required)
	BackupDir string      // backup directory; empty means <Dir>/backup
	PermFile  os.FileMode // 0 means 0644
	PermDir   os.FileMode // 0 means 0755
}

// Repo loads and atomically saves documents under a directory
type Repo struct {
	dir       string
	backupDir string
	permF     os.FileMode
	permD     os.FileMode
}

// New creates a repository, creating the data directory if needed
func New(opts Options) (*Repo, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, fmt.Errorf("%w: empty data directory", ErrInvalidID)
	}
	r := &Repo{dir: opts.Dir, backupDir: opts.BackupDir, permF: opts.PermFile, permD: opts.PermDir}
	if r.backupDir == "" {
		r.backupDir = filepath.Join(opts.Dir, "backup")
	}
	if r.permF == 0 {
		r.permF = 0o644
	}
	if r.permD == 0 {
		r.permD = 0o755
	}
	if err := os.MkdirAll(r.dir, r.permD); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the data directory
func (r *Repo) Dir() string { return r.dir }

// Path maps a document id to its file. Ids are flat file names with or without ".json".
func (r *Repo) Path(id string) (string, error) {
	name := filepath.Clean(strings.TrimSpace(id))
	if name == "." || name == "" || name == ".." || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if !strings.HasSuffix(name, fileExt) {
		name += fileExt
	}
	return filepath.Join(r.dir, name), nil
}

// Load reads and decodes a document
func (r *Repo) Load(id string) (*document.Document, error) {
	path, err := r.Path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	doc, err := document.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	return doc, nil
}

// Save encodes doc and replaces the document file atomically
func (r *Repo) Save(id string, doc *document.Document) error {
	path, err := r.Path(id)
	if err != nil {
		return err
	}
	data, err := document.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	return writeAtomic(path, data, r.permF)
}

// Exists reports whether a document file is present
func (r *Repo) Exists(id string) bool {
	path, err := r.Path(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// List returns the ids of all documents, sorted
func (r *Repo) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Backup copies the current document file to <id>.<timestamp>.bak.json in the backup directory
func (r *Repo) Backup(id string) (string, error) {
	path, err := r.Path(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return "", err
	}
	if err := os.MkdirAll(r.backupDir, r.permD); err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(path), fileExt)
	dest := filepath.Join(r.backupDir, fmt.Sprintf("%s.%s.bak%s", base, time.Now().Format("20060102_150405.000000"), fileExt))
	if err := writeAtomic(dest, data, r.permF); err != nil {
		return "", err
	}
	return dest, nil
}

func writeAtomic(dest string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, perm)

	if _, err := bytes.NewReader(data).WriteTo(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	_ = syncDir(dir)
	return nil
}

// syncDir fsyncs a directory so the rename survives a crash
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
