// Package archive unpacks release archives (tar.gz and zip) and locates
// the executables inside them.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for archive kinds that cannot be unpacked.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

// Format identifies an archive container by its file name.
type Format string

const (
	FormatNone  Format = ""
	FormatTarGz Format = "tar.gz"
	FormatZip   Format = "zip"
	FormatTarXz Format = "tar.xz"
)

// DetectFormat inspects the file name suffix.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return FormatTarXz
	default:
		return FormatNone
	}
}

// Supported reports whether Extract can unpack the format.
func (f Format) Supported() bool {
	return f == FormatTarGz || f == FormatZip
}

// Extract unpacks archivePath into destDir according to its name.
func Extract(archivePath, destDir string) error {
	switch format := DetectFormat(archivePath); format {
	case FormatTarGz:
		return ExtractTarGz(archivePath, destDir)
	case FormatZip:
		return ExtractZip(archivePath, destDir)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(archivePath))
	}
}

// ExtractTarGz extracts a .tar.gz archive to a destination directory.
func ExtractTarGz(archivePath, destDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tarReader, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			// Links may only point inside the extraction root.
			if filepath.IsAbs(header.Linkname) || !isWithin(destDir, filepath.Join(filepath.Dir(target), header.Linkname)) {
				return fmt.Errorf("illegal symlink target: %s -> %s", header.Name, header.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create parent dir for %s: %w", target, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", target, err)
			}
		default:
			continue
		}
	}

	return nil
}

// ExtractZip extracts a .zip archive to a destination directory.
func ExtractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	for _, entry := range reader.File {
		target, err := safeJoin(destDir, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
			continue
		}

		src, err := entry.Open()
		if err != nil {
			return fmt.Errorf("open %s in archive: %w", entry.Name, err)
		}
		mode := entry.Mode().Perm()
		if mode == 0 {
			mode = 0o644
		}
		err = writeFile(target, src, mode)
		src.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// FindBinary walks root and returns the first regular file whose base name
// matches one of names, in order of preference.
func FindBinary(root string, names ...string) (string, error) {
	found := make(map[string]string, len(names))
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		base := d.Name()
		for _, name := range names {
			if strings.EqualFold(base, name) {
				if _, seen := found[name]; !seen {
					found[name] = path
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search %s: %w", root, err)
	}
	for _, name := range names {
		if path, ok := found[name]; ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("none of %s found in archive", strings.Join(names, ", "))
}

// ExtractBinary unpacks archivePath into a scratch directory next to
// destPath, copies the first matching executable to destPath with mode 0755
// and removes the scratch directory.
func ExtractBinary(archivePath, destPath string, names ...string) error {
	scratch, err := os.MkdirTemp(filepath.Dir(destPath), ".extract-*")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	if err := Extract(archivePath, scratch); err != nil {
		return err
	}
	found, err := FindBinary(scratch, names...)
	if err != nil {
		return err
	}
	return InstallFile(found, destPath)
}

// InstallFile copies src to dest through a temp file and marks it
// executable.
func InstallFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	tmp := dest + ".tmp"
	if err := writeFile(tmp, in, 0o755); err != nil {
		return err
	}
	if err := SetExecutable(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("install %s: %w", dest, err)
	}
	return nil
}

// SetExecutable sets executable permissions on a file.
func SetExecutable(path string) error {
	if err := os.Chmod(path, 0o755); err != nil {
		return fmt.Errorf("set executable: %w", err)
	}
	return nil
}

func writeFile(target string, src io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}
	return out.Close()
}

// safeJoin joins name under root and rejects entries that escape it.
func safeJoin(root, name string) (string, error) {
	target := filepath.Join(root, name)
	if !isWithin(root, target) {
		return "", fmt.Errorf("illegal file path: %s", name)
	}
	return target, nil
}

func isWithin(root, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(target))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && !filepath.IsAbs(rel)
}
