package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"e621dl/pkg/e621"
)

// PartialSuffix marks a download that has not been committed yet
const PartialSuffix = ".request"

const illegalChars = `\/:*?"<>|`

// SanitizeDirName makes a search label safe to use as a directory name:
// characters that are illegal on common filesystems and whitespace become
// '_', and the result is lower-cased.
func SanitizeDirName(name string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || strings.ContainsRune(illegalChars, r) {
			return '_'
		}
		return r
	}, name)
	clean = strings.ToLower(clean)

	if clean == "" || clean == "." || clean == ".." {
		return "_"
	}
	return clean
}

// FileName returns <id>.<ext> or <id>.<md5>.<ext>
func FileName(id int64, md5 string, includeMD5 bool, ext string) string {
	name := strconv.FormatInt(id, 10)
	if includeMD5 && md5 != "" {
		name += "." + md5
	}
	return name + "." + ext
}

// PostPath is the final location of a post. It depends only on its arguments.
func PostPath(root, dir string, id int64, md5 string, includeMD5 bool, ext string) string {
	return filepath.Join(root, SanitizeDirName(dir), FileName(id, md5, includeMD5, ext))
}

// PartialPath returns the working file for a final path
func PartialPath(path string) string {
	if IsPartial(path) {
		return path
	}
	return path + PartialSuffix
}

// IsPartial reports whether path names a working file
func IsPartial(path string) bool {
	return strings.HasSuffix(path, PartialSuffix)
}

// FinalPath strips the partial suffix
func FinalPath(path string) string {
	return strings.TrimSuffix(path, PartialSuffix)
}

// PartialPostID parses the post id from a working file name, which starts
// with the id followed by a '.'.
func PartialPostID(path string) (int64, error) {
	base := filepath.Base(path)
	head, _, _ := strings.Cut(base, ".")
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("no post id in file name %q", base)
	}
	return id, nil
}

// Layout places downloads under one root directory
type Layout struct {
	Root       string
	IncludeMD5 bool
}

// NewLayout creates a layout rooted at root
func NewLayout(root string, includeMD5 bool) *Layout {
	return &Layout{Root: root, IncludeMD5: includeMD5}
}

// SearchDir returns the directory for a search
func (l *Layout) SearchDir(dir string) string {
	return filepath.Join(l.Root, SanitizeDirName(dir))
}

// EnsureDir creates the directory for a search
func (l *Layout) EnsureDir(dir string) error {
	if err := os.MkdirAll(l.SearchDir(dir), 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}
	return nil
}

// PathFor returns the final path of post within a search directory
func (l *Layout) PathFor(dir string, post *e621.Post) string {
	return PostPath(l.Root, dir, post.ID, post.MD5, l.IncludeMD5, post.FileExt)
}

// Exists reports whether a regular file is present at path
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return info.Mode().IsRegular(), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// ScanPartials returns every working file below root. A missing root has none.
func ScanPartials(root string) ([]string, error) {
	var partials []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() && IsPartial(d.Name()) {
			partials = append(partials, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s for partial downloads: %w", root, err)
	}

	return partials, nil
}
