// Package archive creates and inspects zip deployment artifacts.
package archive

import (
	"archive/zip"
	"compress/flate"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrEmptyDir is returned when the directory to archive has no files.
var ErrEmptyDir = errors.New("nothing to archive")

// Create zips the contents of dir into a new archive at path. Entries are
// stored with paths relative to dir, so a file at dir/handler.py lands at
// the archive root. The archive is written through a temp file and renamed
// into place, so a failed run never leaves a partial artifact behind.
func Create(path, dir string) error {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", dir, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("%s: %w", dir, ErrEmptyDir)
	}
	// Deterministic entry order keeps repeated builds comparable.
	sort.Strings(files)

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	zw := zip.NewWriter(tmp)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	for _, file := range files {
		if err := addFile(zw, dir, file); err != nil {
			zw.Close()
			return fmt.Errorf("add %s: %w", file, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move archive into place: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, dir, file string) error {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return err
	}

	info, err := os.Stat(file)
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(rel)
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}

// List returns the entry names of an archive, sorted.
func List(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Digest returns the hex sha256 of the archive file.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open archive %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("digest archive %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Contains reports whether the archive has an entry with the given name.
// Names use forward slashes relative to the archive root.
func Contains(path, name string) (bool, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return false, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer r.Close()

	name = filepath.ToSlash(name)
	for _, f := range r.File {
		if f.Name == name {
			return true, nil
		}
	}
	return false, nil
}
