package fs

import (
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/memo/internal/core/domain"
	"go.trai.ch/zerr"
)

// CopyTree recursively copies src (a file, symlink or directory) to dst, which must not exist.
// Symlinks are copied as links. With readOnly set, copied files lose their write bits.
func CopyTree(src, dst string, readOnly bool) error {
	return filepath.WalkDir(src, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to walk source"), "path", path)
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return zerr.Wrap(err, "failed to resolve relative path")
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.Type()&iofs.ModeSymlink != 0:
			return copySymlink(path, target)
		case d.IsDir():
			if err := os.Mkdir(target, domain.DirPerm); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to create directory"), "path", target)
			}
			return nil
		default:
			return copyFile(path, target, d, readOnly)
		}
	})
}

func copySymlink(src, dst string) error {
	link, err := os.Readlink(src)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to read link"), "path", src)
	}
	if err := os.Symlink(link, dst); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create link"), "path", dst)
	}
	return nil
}

func copyFile(src, dst string, d iofs.DirEntry, readOnly bool) error {
	info, err := d.Info()
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to stat file"), "path", src)
	}
	mode := info.Mode().Perm()
	if readOnly {
		mode &^= 0o222
	}

	in, err := os.Open(src) //nolint:gosec // Path comes from a directory walk
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", src)
	}
	defer in.Close() //nolint:errcheck // Read-only handle

	//nolint:gosec // Path is constructed below a directory we own
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode|0o200)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create file"), "path", dst)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return zerr.With(zerr.Wrap(err, "failed to copy file"), "path", dst)
	}
	if err := out.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to close file"), "path", dst)
	}

	if err := os.Chmod(dst, mode); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to chmod file"), "path", dst)
	}
	return nil
}

// RemoveTree deletes path even when it contains read-only files.
func RemoveTree(path string) error {
	err := os.RemoveAll(path)
	if err == nil {
		return nil
	}

	// Windows refuses to delete read-only files; restore write bits and retry.
	_ = filepath.WalkDir(path, func(p string, d iofs.DirEntry, walkErr error) error {
		if walkErr == nil && d.Type()&iofs.ModeSymlink == 0 {
			_ = os.Chmod(p, domain.DirPerm|0o200)
		}
		return nil
	})
	return os.RemoveAll(path)
}
