// Package fs discovers extracted page files on disk.
package fs

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"

	"firerag/internal/port"
)

var pageFileName = regexp.MustCompile(`^page_(\d+)\.html?$`)

// PageWalker finds per-page HTML exports under a source directory.
// Files that do not carry a page number in their name are skipped.
type PageWalker struct {
	includes []string
	excludes []string
}

func NewPageWalker(includes, excludes []string) *PageWalker {
	if len(includes) == 0 {
		includes = []string{"**/page_*.html"}
	}
	return &PageWalker{
		includes: includes,
		excludes: excludes,
	}
}

// Walk returns the matching page files sorted by page number.
func (w *PageWalker) Walk(root string) ([]port.PageFile, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var files []port.PageFile

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if w.shouldExclude(relPath + "/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !w.shouldInclude(relPath) || w.shouldExclude(relPath) {
			return nil
		}

		m := pageFileName.FindStringSubmatch(filepath.Base(path))
		if m == nil {
			return nil
		}
		page, err := strconv.Atoi(m[1])
		if err != nil {
			return nil
		}

		files = append(files, port.PageFile{
			Path: path,
			Page: page,
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Page < files[j].Page })

	return files, nil
}

func (w *PageWalker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *PageWalker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
