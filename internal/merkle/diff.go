package merkle

import (
	"path"
	"sort"
)

// ChangeSet is the minimal set of file-level differences between two tree
// snapshots. Only files are ever reported; directory changes surface through
// the files underneath them. A rename shows up as a removed+added pair.
type ChangeSet struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
}

// Empty reports whether the change-set carries no changes.
func (c *ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0
}

// Len returns the total number of changed paths.
func (c *ChangeSet) Len() int {
	return len(c.Added) + len(c.Modified) + len(c.Removed)
}

func (c *ChangeSet) sort() {
	sort.Strings(c.Added)
	sort.Strings(c.Modified)
	sort.Strings(c.Removed)
}

// Diff compares two snapshots of the same logical project and returns the
// change-set that turns prev into cur. Subtrees with equal hashes are pruned
// without descending, so the cost is proportional to the number of changed
// subtrees, not the total file count. A nil prev means everything in cur is
// added.
func Diff(prev, cur *Tree) *ChangeSet {
	cs := &ChangeSet{}

	var prevRoot, curRoot *Node
	if prev != nil {
		prevRoot = prev.Root
	}
	if cur != nil {
		curRoot = cur.Root
	}

	switch {
	case prevRoot == nil && curRoot == nil:
		// nothing
	case prevRoot == nil:
		collectFiles(curRoot, "", &cs.Added)
	case curRoot == nil:
		collectFiles(prevRoot, "", &cs.Removed)
	default:
		diffDirs(prevRoot, curRoot, "", cs)
	}

	cs.sort()
	return cs
}

func diffDirs(prev, cur *Node, prefix string, cs *ChangeSet) {
	if prev.Hash == cur.Hash {
		// identical subtree, prune
		return
	}

	prevByName := make(map[string]*Node, len(prev.Children))
	for _, c := range prev.Children {
		prevByName[c.Name] = c
	}

	for _, c := range cur.Children {
		p := path.Join(prefix, c.Name)
		old, ok := prevByName[c.Name]
		if !ok {
			addNode(c, p, &cs.Added)
			continue
		}
		delete(prevByName, c.Name)

		if old.Hash == c.Hash && old.Kind == c.Kind {
			continue
		}

		switch {
		case old.IsDir() && c.IsDir():
			diffDirs(old, c, p, cs)
		case !old.IsDir() && !c.IsDir():
			cs.Modified = append(cs.Modified, p)
		default:
			// file replaced by directory or vice versa
			addNode(old, p, &cs.Removed)
			addNode(c, p, &cs.Added)
		}
	}

	for _, old := range prevByName {
		addNode(old, path.Join(prefix, old.Name), &cs.Removed)
	}
}

func addNode(n *Node, p string, out *[]string) {
	if n.IsDir() {
		collectFiles(n, p, out)
	} else {
		*out = append(*out, p)
	}
}

func collectFiles(n *Node, prefix string, out *[]string) {
	for _, c := range n.Children {
		p := path.Join(prefix, c.Name)
		if c.IsDir() {
			collectFiles(c, p, out)
		} else {
			*out = append(*out, p)
		}
	}
}
