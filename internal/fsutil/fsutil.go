// Package fsutil writes downloaded payloads to disk.
package fsutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ErrLimitExceeded is returned by CopyWithContext when src holds more than
// the allowed number of bytes.
var ErrLimitExceeded = errors.New("copy limit exceeded")

// CopyWithContext copies src into dst until EOF or until ctx is done.
// A positive limit caps the number of bytes accepted: reading one byte past
// it stops the copy with ErrLimitExceeded.
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader, limit int64) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		nr, readErr := src.Read(buf)
		if nr > 0 {
			if limit > 0 && written+int64(nr) > limit {
				return written, fmt.Errorf("%w: more than %d bytes", ErrLimitExceeded, limit)
			}
			nw, writeErr := dst.Write(buf[:nr])
			written += int64(nw)
			if writeErr != nil {
				return written, writeErr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// StagedFile is a hidden sibling of its destination. It becomes visible
// under the destination name only on Commit.
type StagedFile struct {
	*os.File
	dest string
	log  *logrus.Entry
	done bool
}

// Stage creates the staging file for dest in dest's directory.
func Stage(log *logrus.Entry, dest string) (*StagedFile, error) {
	dir, name := filepath.Split(dest)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+name+".*.part")
	if err != nil {
		return nil, fmt.Errorf("failed to stage %s: %w", dest, err)
	}
	return &StagedFile{File: f, dest: dest, log: log}, nil
}

// Commit flushes the staged data and moves it to its destination.
func (s *StagedFile) Commit() error {
	if s.done {
		return os.ErrClosed
	}
	s.done = true

	if err := s.Sync(); err != nil {
		s.discard()
		return fmt.Errorf("failed to sync staged file: %w", err)
	}
	if err := s.Close(); err != nil {
		s.discard()
		return fmt.Errorf("failed to close staged file: %w", err)
	}
	if err := MoveFile(s.log, s.Name(), s.dest); err != nil {
		s.discard()
		return err
	}
	return nil
}

// Discard drops the staged data. It is a no-op after Commit.
func (s *StagedFile) Discard() {
	if s.done {
		return
	}
	s.done = true
	s.discard()
}

func (s *StagedFile) discard() {
	s.Close()
	if err := os.Remove(s.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.WithError(err).Warning("Failed to remove staged file")
	}
}

// MoveFile renames src to dst. When rename is refused it falls back to a
// copy followed by removal of src.
func MoveFile(log *logrus.Entry, src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	log.Debug("Rename failed, falling back to copy+delete")

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	_, err = io.Copy(out, in)
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to copy file: %w", err)
	}

	// the copy is complete, a leftover source is only logged
	if err := os.Remove(src); err != nil {
		log.WithError(err).Warning("Failed to remove temporary file")
	}
	return nil
}
