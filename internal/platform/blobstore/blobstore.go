// Package blobstore keeps uploaded binary objects and serves them back at a
// stable public URL. Objects live in buckets on an afero filesystem so the
// same code runs against local disk in production and memory in tests.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrFileTooLarge   = errors.New("file exceeds maximum allowed size")
	ErrInvalidName    = errors.New("invalid bucket or object key")
)

// MaxFileSize is the maximum allowed object size in bytes (20 MB).
const MaxFileSize = 20 * 1024 * 1024

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,199}$`)

// Object describes a stored object.
type Object struct {
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the object storage contract.
type Store interface {
	Put(ctx context.Context, bucket, key, contentType string, content io.Reader) (*Object, error)
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, *Object, error)
	URL(bucket, key string) string
}

// FSStore stores each object as <bucket>/<key> with a JSON sidecar holding
// its metadata.
type FSStore struct {
	fs      afero.Fs
	baseURL string
	now     func() time.Time
}

// NewFSStore roots a store at dir on the OS filesystem. publicBaseURL is
// the externally reachable origin of this server.
func NewFSStore(dir, publicBaseURL string) (*FSStore, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
	}
	return NewStore(afero.NewBasePathFs(osFs, dir), publicBaseURL), nil
}

func NewStore(fs afero.Fs, publicBaseURL string) *FSStore {
	return &FSStore{
		fs:      fs,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		now:     time.Now,
	}
}

func validName(s string) bool {
	return namePattern.MatchString(s) && !strings.Contains(s, "..") && !strings.HasSuffix(s, ".meta.json")
}

// Put writes content, replacing any object already stored under the key.
func (s *FSStore) Put(_ context.Context, bucket, key, contentType string, content io.Reader) (*Object, error) {
	if !validName(bucket) || !validName(key) {
		return nil, ErrInvalidName
	}
	if err := s.fs.MkdirAll(bucket, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
	}

	objPath := path.Join(bucket, key)
	tmp := objPath + ".partial"
	f, err := s.fs.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create object: %w", err)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), io.LimitReader(content, MaxFileSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.fs.Remove(tmp)
		return nil, fmt.Errorf("write object: %w", err)
	}
	if n > MaxFileSize {
		_ = s.fs.Remove(tmp)
		return nil, ErrFileTooLarge
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	obj := &Object{
		Bucket:      bucket,
		Key:         key,
		ContentType: contentType,
		Size:        n,
		Hash:        hex.EncodeToString(h.Sum(nil)),
		CreatedAt:   s.now().UTC(),
	}
	meta, err := json.Marshal(obj)
	if err != nil {
		_ = s.fs.Remove(tmp)
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if err := afero.WriteFile(s.fs, objPath+".meta.json", meta, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		return nil, fmt.Errorf("write metadata: %w", err)
	}
	if err := s.fs.Rename(tmp, objPath); err != nil {
		return nil, fmt.Errorf("commit object: %w", err)
	}
	return obj, nil
}

func (s *FSStore) Open(_ context.Context, bucket, key string) (io.ReadCloser, *Object, error) {
	if !validName(bucket) || !validName(key) {
		return nil, nil, ErrObjectNotFound
	}
	objPath := path.Join(bucket, key)

	raw, err := afero.ReadFile(s.fs, objPath+".meta.json")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("read metadata: %w", err)
	}
	var obj Object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, nil, fmt.Errorf("decode metadata: %w", err)
	}

	f, err := s.fs.Open(objPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("open object: %w", err)
	}
	return f, &obj, nil
}

// URL returns the public retrieval URL served by Handler.
func (s *FSStore) URL(bucket, key string) string {
	return s.baseURL + "/storage/" + url.PathEscape(bucket) + "/" + url.PathEscape(key)
}
