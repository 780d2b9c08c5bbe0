package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Pack collects every regular file under workDir (recursively) into a zip
// archive at archivePath. Entry names preserve each file's path relative to
// workDir so artifacts from different items cannot collide. The archive
// file itself is never included, even when archivePath sits inside workDir.
func Pack(workDir, archivePath string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	writer := zip.NewWriter(out)

	absArchive, err := filepath.Abs(archivePath)
	if err != nil {
		return fmt.Errorf("resolve archive path: %w", err)
	}

	walkErr := filepath.WalkDir(workDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !entry.Type().IsRegular() {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if abs == absArchive {
			return nil
		}
		rel, err := filepath.Rel(workDir, path)
		if err != nil {
			return err
		}
		return addFile(writer, path, filepath.ToSlash(rel))
	})
	if walkErr != nil {
		_ = writer.Close()
		return fmt.Errorf("collect artifacts: %w", walkErr)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("flush archive: %w", err)
	}
	return nil
}

func addFile(writer *zip.Writer, path, name string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer file.Close()

	entry, err := writer.Create(name)
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", name, err)
	}
	if _, err := io.Copy(entry, file); err != nil {
		return fmt.Errorf("write archive entry %s: %w", name, err)
	}
	return nil
}
