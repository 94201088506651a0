package colonization

import "github.com/oxygene76/fractaltree/pkg/geometry"

// NoParent marks the root node
const NoParent = -1

// TreeNode is one segment endpoint in the growing tree.
// Parent is an index into the tree's node list.
type TreeNode struct {
	Parent int
	Pos    geometry.Vector
	Dir    geometry.Vector
	Force  geometry.Vector
	// Count is the number of attractors that pulled this node in the current tick
	Count       int
	OriginalDir geometry.Vector
}

// NewTreeNode creates a node whose original direction is frozen to dir
func NewTreeNode(parent int, pos, dir *geometry.Vector) TreeNode {
	return TreeNode{
		Parent:      parent,
		Pos:         *pos.Clone(),
		Dir:         *dir.Clone(),
		Force:       *geometry.NullVector(),
		OriginalDir: *dir.Clone(),
	}
}

// NewRootNode creates the parentless first node
func NewRootNode(pos, dir *geometry.Vector) TreeNode {
	return NewTreeNode(NoParent, pos, dir)
}

// Next returns a child one step along the current direction.
// index is this node's position in the node list.
func (n *TreeNode) Next(index int) TreeNode {
	return NewTreeNode(index, n.Pos.Clone().Add(&n.Dir), &n.Dir)
}

// ApplyForce accumulates a pull and counts the contributor
func (n *TreeNode) ApplyForce(f *geometry.Vector) {
	n.Count++
	n.Force.Add(f)
}

// Reset restores the frozen direction and clears the accumulator
func (n *TreeNode) Reset() {
	n.Dir.Set(n.OriginalDir.X, n.OriginalDir.Y, n.OriginalDir.Z)
	n.Force.Null()
	n.Count = 0
}

// IsRoot reports whether the node has no parent
func (n *TreeNode) IsRoot() bool {
	return n.Parent == NoParent
}
