package assets

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// installedGameDirs lists the subdirectories of an install root that may
// hold pk3s: the base game plus the mission packs layered on top of it.
// baseline.go keeps its own overlay list (overlayGames).
var installedGameDirs = []string{"basenac", "xatrix", "rogue"}

// CollectGamePk3s returns game dir name → ordered pk3 paths for each game
// directory found under installDir. Used to build the content a joining
// client's FS_OpenFile/FS_ReadFile imports and download handshake draw
// from, without loading every file into memory up front.
func CollectGamePk3s(installDir string) map[string][]string {
	result := make(map[string][]string)
	for _, subdir := range installedGameDirs {
		dir := filepath.Join(installDir, subdir)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		files := collectPk3FilesFromDir(dir)
		if len(files) > 0 {
			result[subdir] = files
		}
	}
	return result
}

// collectPk3FilesFromDir collects pk3 files from a directory in Quake 3 load order:
// pak0-9 first (numerically), then other pk3s alphabetically.
func collectPk3FilesFromDir(dir string) []string {
	var pakFiles []string
	var otherFiles []string

	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".pk3") {
			return nil
		}

		name := d.Name()
		lowerName := strings.ToLower(name)

		isRootLevel := filepath.Dir(path) == dir
		if isRootLevel && strings.HasPrefix(lowerName, "pak") && len(lowerName) == 8 {
			numChar := lowerName[3]
			if numChar >= '0' && numChar <= '9' {
				pakFiles = append(pakFiles, path)
				return nil
			}
		}
		otherFiles = append(otherFiles, path)
		return nil
	})

	sort.Slice(pakFiles, func(i, j int) bool {
		return pakFiles[i] < pakFiles[j]
	})
	sort.Strings(otherFiles)

	return append(pakFiles, otherFiles...)
}

// openPk3 opens pk3Path and runs fn against its directory, closing the
// archive when fn returns. Centralizes the open/defer-Close/wrap-error
// boilerplate every pk3 reader below used to repeat on its own.
func openPk3(pk3Path string, fn func(*zip.ReadCloser) error) error {
	r, err := zip.OpenReader(pk3Path)
	if err != nil {
		return fmt.Errorf("open pk3 %s: %w", pk3Path, err)
	}
	defer r.Close()
	return fn(r)
}

// readZipEntry reads one file's contents out of an already-open zip.
func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ReadFileFromPk3 reads a single file from a pk3 archive.
func ReadFileFromPk3(pk3Path, virtualPath string) ([]byte, error) {
	lowerTarget := strings.ToLower(virtualPath)
	var data []byte
	err := openPk3(pk3Path, func(r *zip.ReadCloser) error {
		for _, f := range r.File {
			if strings.ToLower(f.Name) == lowerTarget {
				d, err := readZipEntry(f)
				if err != nil {
					return fmt.Errorf("%s in %s: %w", virtualPath, pk3Path, err)
				}
				data = d
				return nil
			}
		}
		return fmt.Errorf("%s not found in %s", virtualPath, pk3Path)
	})
	return data, err
}

// WritePk3 creates a pk3 (zip) file with the given files using Deflate compression.
func WritePk3(outputPath string, files map[string][]byte) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outputPath, err)
	}
	defer f.Close()

	return WritePk3ToWriter(f, files)
}

// WritePk3ToWriter writes a pk3 (zip) to the given writer using Deflate compression.
func WritePk3ToWriter(w io.Writer, files map[string][]byte) error {
	zw := zip.NewWriter(w)

	// Sort keys for deterministic output
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		header := &zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("create entry %s: %w", name, err)
		}
		if _, err := fw.Write(files[name]); err != nil {
			return fmt.Errorf("write entry %s: %w", name, err)
		}
	}

	return zw.Close()
}

// IteratePk3 iterates over entries in a pk3 file, calling fn for each entry.
func IteratePk3(pk3Path string, fn func(name string, open func() (io.ReadCloser, error)) error) error {
	return openPk3(pk3Path, func(r *zip.ReadCloser) error {
		for _, f := range r.File {
			if err := fn(f.Name, f.Open); err != nil {
				return err
			}
		}
		return nil
	})
}

// BuildFileIndex builds a case-insensitive file index across all pk3s for a game.
// Later pk3s override earlier ones. Returns lowered path → source pk3 path.
func BuildFileIndex(pk3Paths []string) (map[string]string, error) {
	index := make(map[string]string)
	for _, pk3Path := range pk3Paths {
		err := openPk3(pk3Path, func(r *zip.ReadCloser) error {
			for _, f := range r.File {
				if f.FileInfo().IsDir() {
					continue
				}
				index[strings.ToLower(f.Name)] = pk3Path
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return index, nil
}

// pakNameSuffix checks filename against the pak[0-9]<suffix> naming
// convention official and override content paks share, differing only in
// the byte (if any) between the digit and ".pk3".
func pakNameSuffix(filename, suffix string) bool {
	lower := strings.ToLower(filepath.Base(filename))
	want := 3 + 1 + len(suffix) + 4 // "pak" + digit + suffix + ".pk3"
	if len(lower) != want {
		return false
	}
	return strings.HasPrefix(lower, "pak") && lower[3] >= '0' && lower[3] <= '9' &&
		lower[4:4+len(suffix)] == suffix && lower[4+len(suffix):] == ".pk3"
}

// IsOfficialPak returns true if the filename matches pak[0-9].pk3 (official id Software paks).
func IsOfficialPak(filename string) bool { return pakNameSuffix(filename, "") }

// IsOverridePak returns true if the filename matches pak[0-9]t.pk3 (override content paks).
func IsOverridePak(filename string) bool { return pakNameSuffix(filename, "t") }

// ExtractFilesFromPk3s extracts specified files from pk3s using the file index.
// Returns path → file data for all files found.
func ExtractFilesFromPk3s(paths []string, fileIndex map[string]string) (map[string][]byte, error) {
	byPk3 := make(map[string]map[string]bool)
	for _, path := range paths {
		lower := strings.ToLower(path)
		pk3, ok := fileIndex[lower]
		if !ok {
			continue
		}
		if byPk3[pk3] == nil {
			byPk3[pk3] = make(map[string]bool)
		}
		byPk3[pk3][lower] = true
	}

	result := make(map[string][]byte)
	for pk3Path, wanted := range byPk3 {
		err := openPk3(pk3Path, func(r *zip.ReadCloser) error {
			for _, f := range r.File {
				lower := strings.ToLower(f.Name)
				if !wanted[lower] {
					continue
				}
				data, err := readZipEntry(f)
				if err != nil {
					return fmt.Errorf("%s in %s: %w", f.Name, pk3Path, err)
				}
				result[lower] = data
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}
