package analyze

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/rtgl/internal/ir"
)

// DefaultDirs are scanned when Options.Dirs is empty.
var DefaultDirs = []string{"src/components"}

// fileSuffixes maps a component file suffix to its kind.
var fileSuffixes = []struct {
	suffix string
	kind   ir.FileKind
}{
	{".schema.yaml", ir.FileSchema},
	{".view.yaml", ir.FileView},
	{".handlers.js", ir.FileHandlers},
	{".methods.js", ir.FileMethods},
	{".store.js", ir.FileStore},
	{".constants.yaml", ir.FileConstants},
}

// componentFiles is one discovered component before parsing.
type componentFiles struct {
	key   string
	files map[ir.FileKind]string
}

// classifyFile returns the component base name and kind for a file name.
func classifyFile(name string) (string, ir.FileKind, bool) {
	for _, s := range fileSuffixes {
		if strings.HasSuffix(name, s.suffix) && len(name) > len(s.suffix) {
			return strings.TrimSuffix(name, s.suffix), s.kind, true
		}
	}
	return "", "", false
}

// componentKey derives the stable key for a component from its
// project-relative directory and base name.
func componentKey(relDir, base string) string {
	if relDir == "." || relDir == "" {
		return base
	}
	if path.Base(relDir) == base {
		return relDir
	}
	return relDir + "/" + base
}

// discover walks every dir under root and groups component files.
// Paths in the result are project-relative with forward slashes.
// The result is sorted by component key.
func discover(root string, dirs []string) ([]componentFiles, []string, error) {
	byKey := make(map[string]*componentFiles)
	scanned := make([]string, 0, len(dirs))

	for _, dir := range dirs {
		abs := filepath.Join(root, filepath.FromSlash(dir))
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			continue
		}
		scanned = append(scanned, filepath.ToSlash(filepath.Clean(dir)))

		walkErr := filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if p != abs && (strings.HasPrefix(name, ".") || name == "node_modules") {
					return filepath.SkipDir
				}
				return nil
			}
			base, kind, ok := classifyFile(d.Name())
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			key := componentKey(path.Dir(rel), base)
			cf, exists := byKey[key]
			if !exists {
				cf = &componentFiles{key: key, files: make(map[ir.FileKind]string)}
				byKey[key] = cf
			}
			cf.files[kind] = rel
			return nil
		})
		if walkErr != nil {
			return nil, nil, walkErr
		}
	}

	out := make([]componentFiles, 0, len(byKey))
	for _, cf := range byKey {
		out = append(out, *cf)
	}
	slices.SortFunc(out, func(a, b componentFiles) int {
		return strings.Compare(a.key, b.key)
	})
	return out, scanned, nil
}
