package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Disk stores objects under a root directory, one file per key plus a small
// sidecar with the content type. Good enough for a single-node deployment;
// swap the Store port for a bucket-backed implementation beyond that.
type Disk struct {
	Root string
}

var _ Store = (*Disk)(nil)

func NewDisk(root string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Disk{Root: root}, nil
}

type sidecar struct {
	ContentType string `json:"content_type"`
}

func (d *Disk) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(d.Root, clean), nil
}

func (d *Disk) Put(ctx context.Context, key, contentType string, r io.Reader) (Info, error) {
	p, err := d.path(key)
	if err != nil {
		return Info{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return Info{}, err
	}

	// write to a temp file then rename, so readers never see partial bytes
	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return Info{}, err
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return Info{}, err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return Info{}, err
	}

	meta, _ := json.Marshal(sidecar{ContentType: contentType})
	if err := os.WriteFile(p+".meta", meta, 0o644); err != nil {
		return Info{}, err
	}
	return Info{Key: key, ContentType: contentType, Size: n}, nil
}

func (d *Disk) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrNotExist
		}
		return nil, "", err
	}
	return f, d.contentType(p), nil
}

func (d *Disk) Stat(ctx context.Context, key string) (Info, error) {
	p, err := d.path(key)
	if err != nil {
		return Info{}, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, ErrNotExist
		}
		return Info{}, err
	}
	return Info{Key: key, ContentType: d.contentType(p), Size: fi.Size()}, nil
}

func (d *Disk) Delete(ctx context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return ErrNotExist
		}
		return err
	}
	_ = os.Remove(p + ".meta")
	return nil
}

func (d *Disk) contentType(p string) string {
	b, err := os.ReadFile(p + ".meta")
	if err != nil {
		return "application/octet-stream"
	}
	var sc sidecar
	if json.Unmarshal(b, &sc) != nil || sc.ContentType == "" {
		return "application/octet-stream"
	}
	return sc.ContentType
}
