// Package archive packs and unpacks image blobs. A blob is a ZIP
// holding exactly one *.image entry and a companion *.changes entry
// with the same stem; inside a working directory the pair always
// appears as squeak.image and squeak.changes.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Names the image pair takes inside a build working directory.
const (
	ImageName   = "squeak.image"
	ChangesName = "squeak.changes"
)

// MalformedError reports an archive that is not a valid image blob.
type MalformedError struct {
	Path   string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed image archive %s: %s", e.Path, e.Reason)
}

// Extract unpacks the image and changes entries of the blob at zipPath
// into workDir as squeak.image and squeak.changes. Files already
// present under those names are left alone with a warning.
func Extract(zipPath, workDir string, logger *log.Logger) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("opening image archive %s: %w", zipPath, err)
	}
	defer zr.Close()

	imageEntry, changesEntry, err := findImagePair(&zr.Reader, zipPath)
	if err != nil {
		return err
	}

	if err := extractEntry(imageEntry, filepath.Join(workDir, ImageName), logger); err != nil {
		return err
	}
	return extractEntry(changesEntry, filepath.Join(workDir, ChangesName), logger)
}

// findImagePair locates the first *.image entry and the *.changes
// entry sharing its stem.
func findImagePair(zr *zip.Reader, zipPath string) (image, changes *zip.File, err error) {
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".image") {
			image = f
			break
		}
	}
	if image == nil {
		return nil, nil, &MalformedError{Path: zipPath, Reason: "no *.image entry"}
	}

	stem := strings.TrimSuffix(image.Name, path.Ext(image.Name))
	want := stem + ".changes"
	for _, f := range zr.File {
		if f.Name == want {
			changes = f
			break
		}
	}
	if changes == nil {
		return nil, nil, &MalformedError{Path: zipPath, Reason: fmt.Sprintf("no %s entry matching %s", want, image.Name)}
	}
	return image, changes, nil
}

func extractEntry(entry *zip.File, dest string, logger *log.Logger) error {
	if _, err := os.Stat(dest); err == nil {
		logger.Warn("not overwriting existing file", "path", dest)
		return nil
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("opening archive entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("extracting %s: %w", entry.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dest, err)
	}
	return nil
}

// Pack writes a new image blob to w from the squeak.image and
// squeak.changes files in workDir, using the given entry stem.
func Pack(workDir, stem string, w io.Writer) error {
	zw := zip.NewWriter(w)

	pairs := []struct{ src, entry string }{
		{filepath.Join(workDir, ImageName), stem + ".image"},
		{filepath.Join(workDir, ChangesName), stem + ".changes"},
	}
	for _, p := range pairs {
		if err := packFile(zw, p.src, p.entry); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing image archive: %w", err)
	}
	return nil
}

func packFile(zw *zip.Writer, src, entryName string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()

	entry, err := zw.Create(entryName)
	if err != nil {
		return fmt.Errorf("creating archive entry %s: %w", entryName, err)
	}
	if _, err := io.Copy(entry, f); err != nil {
		return fmt.Errorf("archiving %s: %w", src, err)
	}
	return nil
}
