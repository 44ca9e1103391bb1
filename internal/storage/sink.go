package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/user/stm_scan_go/internal/scan"
)

// Stdout is the destination that writes to the sink's standard output.
const Stdout = "-"

// Sink writes rendered output bytes to a destination.
type Sink interface {
	Write(ctx context.Context, dest string, data []byte, contentType string) error
}

// LocalSink writes files on the local filesystem. The destination "-"
// writes to Out instead.
type LocalSink struct {
	Out io.Writer
}

func (s LocalSink) Write(ctx context.Context, dest string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return scan.IOErrorf("write %s: %v", dest, err)
	}
	if dest == Stdout {
		out := s.Out
		if out == nil {
			out = os.Stdout
		}
		if _, err := out.Write(data); err != nil {
			return scan.IOErrorf("write to stdout: %v", err)
		}
		return nil
	}
	if dest == "" {
		return scan.IOErrorf("empty output path")
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return scan.IOErrorf("create directory %s: %v", dir, err)
	}
	// Temp file plus rename: dest is either complete or untouched.
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*")
	if err != nil {
		return scan.IOErrorf("create %s: %v", dest, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return scan.IOErrorf("write %s: %v", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return scan.IOErrorf("write %s: %v", dest, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return scan.IOErrorf("write %s: %v", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return scan.IOErrorf("write %s: %v", dest, err)
	}
	return nil
}

// Router sends s3:// destinations to an S3 sink and everything else to the
// local sink. The S3 client is created on first use.
type Router struct {
	Local Sink
	S3    S3Config

	once   sync.Once
	remote Sink
	err    error
}

// NewSink returns a Router writing local files (and "-") through out.
func NewSink(out io.Writer, cfg S3Config) *Router {
	return &Router{Local: LocalSink{Out: out}, S3: cfg}
}

func (r *Router) Write(ctx context.Context, dest string, data []byte, contentType string) error {
	if !IsS3URI(dest) {
		return r.Local.Write(ctx, dest, data, contentType)
	}
	r.once.Do(func() {
		r.remote, r.err = NewS3Sink(ctx, r.S3)
	})
	if r.err != nil {
		return r.err
	}
	return r.remote.Write(ctx, dest, data, contentType)
}

// IsS3URI reports whether dest names an S3 object.
func IsS3URI(dest string) bool {
	return strings.HasPrefix(dest, s3Scheme)
}
