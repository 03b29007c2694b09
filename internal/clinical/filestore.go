package clinical

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/spf13/afero"
)

// FileStore keeps attachment bytes under opaque keys. Metadata lives in the
// Repository.
type FileStore interface {
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// AferoStore is a FileStore over an afero filesystem: the local disk in
// production, memory in tests.
type AferoStore struct {
	fs afero.Fs
}

// NewDiskStore roots a store at dir, creating it if needed. Keys can never
// escape dir.
func NewDiskStore(dir string) (*AferoStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	return &AferoStore{fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}, nil
}

func NewMemoryStore() *AferoStore {
	return &AferoStore{fs: afero.NewMemMapFs()}
}

// Save writes to a temporary name and renames, so a reader never sees a
// partial file under key.
func (s *AferoStore) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	key = rooted(key)
	if err := s.fs.MkdirAll(path.Dir(key), 0o750); err != nil {
		return 0, err
	}

	tmp := key + ".part"
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, readerWithContext(ctx, r))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(tmp)
		return n, err
	}
	if err := s.fs.Rename(tmp, key); err != nil {
		_ = s.fs.Remove(tmp)
		return n, err
	}
	return n, nil
}

func (s *AferoStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := s.fs.Open(rooted(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrAttachmentNotFound
	}
	return f, err
}

// Remove is idempotent.
func (s *AferoStore) Remove(_ context.Context, key string) error {
	err := s.fs.Remove(rooted(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// rooted anchors a key at the store root so ".." segments cannot climb out.
func rooted(key string) string {
	return path.Join("/", key)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
