package filesystem

import (
	"strings"

	littlefs "github.com/brettbedarf/littlefs-utils"
)

// Lister lists a single directory.
type Lister interface {
	ListDirectory(path string) ([]littlefs.DirectoryEntry, error)
}

// RecursiveDirList walks the tree below root with an explicit LIFO work list
// and returns every non-directory entry. Directories are not reported and
// result order follows the work list, not the names. The tree is assumed to
// be acyclic.
func RecursiveDirList(l Lister, root string) ([]littlefs.FileInfo, error) {
	// child paths are built by concatenation, so "/" becomes ""
	root = strings.TrimRight(root, "/")

	var files []littlefs.FileInfo
	pending := []string{root}
	for len(pending) > 0 {
		dir := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		listPath := dir
		if listPath == "" {
			listPath = "/"
		}
		entries, err := l.ListDirectory(listPath)
		if err != nil {
			return nil, err
		}

		for _, e := range entries {
			if e.Name == "." || e.Name == ".." {
				continue
			}
			child := dir + "/" + e.Name
			if e.IsDirectory {
				pending = append(pending, child)
				continue
			}
			files = append(files, littlefs.FileInfo{Path: child, Size: e.Size})
		}
	}
	return files, nil
}
