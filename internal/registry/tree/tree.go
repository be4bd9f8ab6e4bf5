// Package tree builds a hierarchical, sorted view over the flat file list
// of a package version, for browsing and URL generation. Content is never
// loaded into the tree; previewable leaves are fetched from the blob store
// by the caller.
package tree

import (
	"sort"
	"strings"

	"github.com/uiua-boo/registry/internal/registry/domain"
)

// RootDisplayName is how the root node renders; its internal name is empty.
const RootDisplayName = "/"

// Node is a directory or file node. Directory nodes are synthesized from
// path segments; leaf nodes carry the underlying file record.
type Node struct {
	name     string
	parent   *Node
	isDir    bool
	children []*Node
	file     *domain.PackageVersionFile
}

// Tree is the rooted file tree of one package version.
type Tree struct {
	root *Node
}

// Build constructs a tree from the version's file rows. Intermediate path
// segments become directory nodes, de-duplicated by name within their
// parent. The result is sorted recursively with directories before files,
// then by name using case-sensitive ordinal comparison.
func Build(files []*domain.PackageVersionFile) *Tree {
	root := &Node{isDir: true}
	for _, file := range files {
		insert(root, file)
	}
	sortNodes(root)
	return &Tree{root: root}
}

func insert(root *Node, file *domain.PackageVersionFile) {
	segments := strings.Split(file.Path(), "/")
	current := root
	for _, segment := range segments[:len(segments)-1] {
		current = current.childDir(segment)
	}
	current.children = append(current.children, &Node{
		name:   segments[len(segments)-1],
		parent: current,
		file:   file,
	})
}

// childDir returns the directory child with the given name, creating it
// when absent.
func (n *Node) childDir(name string) *Node {
	for _, child := range n.children {
		if child.isDir && child.name == name {
			return child
		}
	}
	dir := &Node{name: name, parent: n, isDir: true}
	n.children = append(n.children, dir)
	return dir
}

func sortNodes(n *Node) {
	sort.SliceStable(n.children, func(i, j int) bool {
		a, b := n.children[i], n.children[j]
		if a.isDir != b.isDir {
			return a.isDir
		}
		return a.name < b.name
	})
	for _, child := range n.children {
		sortNodes(child)
	}
}

// Root returns the root node, which represents the version's top level.
func (t *Tree) Root() *Node {
	return t.root
}

// Lookup resolves a slash-separated path to a node, or nil when no such
// node exists. The empty path resolves to the root. When a file and a
// directory share a name at the same level, intermediate segments match
// the directory and the final segment prefers the file.
func (t *Tree) Lookup(path string) *Node {
	if path == "" {
		return t.root
	}
	segments := strings.Split(path, "/")
	current := t.root
	for i, segment := range segments {
		last := i == len(segments)-1
		var next *Node
		for _, child := range current.children {
			if child.name != segment {
				continue
			}
			if child.isDir == !last {
				next = child
				break
			}
			if next == nil {
				next = child
			}
		}
		if next == nil {
			return nil
		}
		current = next
	}
	return current
}

// Name returns the node's own path segment; the root's name is empty.
func (n *Node) Name() string { return n.name }

// DisplayName returns the name to render, with the root shown as "/".
func (n *Node) DisplayName() string {
	if n.parent == nil {
		return RootDisplayName
	}
	return n.name
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool { return n.isDir }

// Children returns the node's sorted children.
func (n *Node) Children() []*Node { return n.children }

// File returns the underlying file record for leaf nodes, nil for
// directories.
func (n *Node) File() *domain.PackageVersionFile { return n.file }

// Path returns the node's slash-separated path from the root, computed by
// walking ancestors. The root's path is empty.
func (n *Node) Path() string {
	if n.parent == nil {
		return ""
	}
	segments := []string{}
	for current := n; current.parent != nil; current = current.parent {
		segments = append(segments, current.name)
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, "/")
}

// IsPreviewable reports whether the node is a leaf whose file has a stored
// preview blob and was classified previewable at publish time.
func (n *Node) IsPreviewable() bool {
	if n.isDir || n.file == nil {
		return false
	}
	return n.file.FileKey() != nil && n.file.IsPreviewable()
}
