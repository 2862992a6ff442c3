// Package files stores uploaded solutions on an afero filesystem.
package files

import (
	"context"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/submission"
)

const tmpDir = ".tmp"

type Store struct {
	fs        afero.Fs
	dir       string
	staticURL string
}

var _ submission.FileStore = (*Store)(nil)

// NewStore serves files of dir from staticURL. dir and its staging subdir are created if needed.
func NewStore(fs afero.Fs, conf core.StorageConfig) (*Store, error) {
	s := &Store{fs: fs, dir: conf.Dir, staticURL: strings.TrimSuffix(conf.StaticURL, "/")}
	if err := fs.MkdirAll(path.Join(s.dir, tmpDir), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage dir")
	}
	return s, nil
}

// NewOSStore stores files on the local disk.
func NewOSStore(conf core.StorageConfig) (*Store, error) {
	return NewStore(afero.NewOsFs(), conf)
}

// NewMemStore keeps files in memory.
func NewMemStore(conf core.StorageConfig) *Store {
	s, _ := NewStore(afero.NewMemMapFs(), conf)
	return s
}

func (s *Store) path(name string) string {
	return path.Join(s.dir, path.Base(name))
}

func (s *Store) tmpPath(name string) string {
	return path.Join(s.dir, tmpDir, path.Base(name))
}

func (s *Store) Stage(ctx context.Context, content io.Reader) (string, error) {
	name := uuid.New().String()
	f, err := s.fs.OpenFile(s.tmpPath(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "creating staged file")
	}

	_, err = io.Copy(f, &ctxReader{ctx: ctx, r: content})
	if cErr := f.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		_ = s.fs.Remove(s.tmpPath(name))
		return "", errors.Wrap(err, "writing staged file")
	}
	return name, nil
}

func (s *Store) Publish(tmpName, name string) error {
	return errors.Wrap(s.fs.Rename(s.tmpPath(tmpName), s.path(name)), "publishing file")
}

// Remove deletes a published or staged file; missing files are ignored.
func (s *Store) Remove(name string) error {
	for _, p := range []string{s.path(name), s.tmpPath(name)} {
		if err := s.fs.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "removing file")
		}
	}
	return nil
}

func (s *Store) URL(name string) string {
	return s.staticURL + "/" + path.Base(name)
}

func (s *Store) NameOf(link string) (string, bool) {
	prefix := s.staticURL + "/"
	if !strings.HasPrefix(link, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(link, prefix)
	if name == "" || strings.Contains(name, "/") || name == tmpDir {
		return "", false
	}
	return name, true
}

// Open returns a published file; used to serve solutions.
func (s *Store) Open(name string) (afero.File, error) {
	if name == "" || strings.HasPrefix(name, ".") {
		return nil, os.ErrNotExist
	}
	return s.fs.Open(s.path(name))
}

// ctxReader stops copying once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
