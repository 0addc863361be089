package fs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"pdfqa/internal/port"
)

// Walker expands glob patterns (with ** support) into the PDF files they
// match. Plain file paths are accepted as patterns too.
type Walker struct {
	excludes []string
}

var _ port.FileWalker = (*Walker)(nil)

func NewWalker(excludes []string) *Walker {
	return &Walker{excludes: excludes}
}

// Walk returns matching regular files with a .pdf extension, deduplicated and
// sorted by path.
func (w *Walker) Walk(patterns []string) ([]port.FileInfo, error) {
	seen := make(map[string]bool)
	var files []port.FileInfo

	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, err
		}

		for _, path := range matches {
			if !isPDF(path) || w.shouldExclude(path) {
				continue
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				return nil, err
			}
			if seen[abs] {
				continue
			}

			info, err := os.Stat(abs)
			if err != nil {
				return nil, err
			}
			if info.IsDir() {
				continue
			}

			seen[abs] = true
			files = append(files, port.FileInfo{
				Path:    abs,
				ModTime: info.ModTime().Unix(),
				Size:    info.Size(),
			})
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func (w *Walker) shouldExclude(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, slashed)
		if err == nil && matched {
			return true
		}
	}
	return false
}
