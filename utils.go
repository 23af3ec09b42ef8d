package blaise

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// filesByExtInDir returns all regular files (or symlinks) with file extension ext found directly in
// directory dirPath, sorted by name. All files are returned if ext is empty.
func filesByExtInDir(dirPath, ext string) ([]string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read directory %q", dirPath)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		mode := e.Type()
		// Must be a regular file or a symlink and have the requested extension/suffix.
		if (!mode.IsRegular() && mode&fs.ModeSymlink == 0) || !strings.HasSuffix(name, ext) {
			continue
		}
		files = append(files, filepath.Join(dirPath, name))
	}

	return files, nil
}

// filesByExtUnder walks the tree rooted at root and returns every regular file whose extension
// is exactly ext, in lexical walk order. Unreadable subtrees are logged and skipped.
func filesByExtUnder(root, ext string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot access %q", root)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%q is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnf("Failed to access %q: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && filepath.Ext(path) == ext {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// splitPath splits the given file path into the dir name, the base name without extension and the
// extension (without the dot).
func splitPath(path string) (dir, baseNoExt, ext string, err error) {
	dir, file := filepath.Split(path)
	ext = filepath.Ext(file)
	if ext == "" {
		return "", "", "", errors.Errorf("missing file extension in %q", path)
	}

	dir = strings.TrimSuffix(dir, string(os.PathSeparator))
	baseNoExt = file[0 : len(file)-len(ext)]
	ext = ext[1:]

	return dir, baseNoExt, ext, nil
}

// mapFileNamesToExtensions maps the base names of the given file paths, with the file type
// extensions stripped off, to the file extension (without the dot). When several files share a
// base name, the first one in sorted order wins.
func mapFileNamesToExtensions(filePaths []string) map[string]string {
	sorted := append([]string(nil), filePaths...)
	sort.Strings(sorted)

	mapping := make(map[string]string, len(sorted))
	for _, path := range sorted {
		_, baseNoExt, ext, err := splitPath(path)
		if err != nil {
			log.Debug(err)
			continue
		}
		if _, dup := mapping[baseNoExt]; dup {
			log.Debugf("Ignoring %q, another file with the same base name exists", path)
			continue
		}
		mapping[baseNoExt] = ext
	}

	return mapping
}

// readLines returns a slice of lines read from the file at path.
func readLines(path string) (lines []string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read file %q", path)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(file))

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %q as lines", path)
	}

	return lines, nil
}

// stripExt returns the base name of path without its extension.
func stripExt(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
