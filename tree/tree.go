// Package tree provides phylogenetic trees with named leaves and
// branch lengths, parsed from Newick format.
package tree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Node is a node of a phylogenetic tree.
type Node struct {
	// Name is the node label (normally only set for leaves).
	Name string
	// BranchLength is the length of the branch leading to the node.
	BranchLength float64
	// ID is a unique node identifier, dense in [0, NNodes).
	ID int
	// LeafID is a unique leaf identifier, dense in [0, NLeaves);
	// -1 for internal nodes.
	LeafID int

	parent   *Node
	children []*Node
}

// IsRoot tests if the node has no parent.
func (n *Node) IsRoot() bool { return n.parent == nil }

// IsLeaf tests if the node has no children.
func (n *Node) IsLeaf() bool { return len(n.children) == 0 }

// Children returns the child nodes.
func (n *Node) Children() []*Node { return n.children }

// Parent returns the parent node, nil for the root.
func (n *Node) Parent() *Node { return n.parent }

func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	b.WriteByte(';')
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	if len(n.children) > 0 {
		b.WriteByte('(')
		for i, child := range n.children {
			if i > 0 {
				b.WriteByte(',')
			}
			child.write(b)
		}
		b.WriteByte(')')
	}
	b.WriteString(n.Name)
	if !n.IsRoot() {
		fmt.Fprintf(b, ":%g", n.BranchLength)
	}
}

// Tree is a rooted phylogenetic tree.
type Tree struct {
	root      *Node
	nodes     []*Node
	nodeOrder []*Node
	nLeaves   int
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// NNodes returns the total number of nodes.
func (t *Tree) NNodes() int { return len(t.nodes) }

// NLeaves returns the number of leaves.
func (t *Tree) NLeaves() int { return t.nLeaves }

// MaxNodeID returns the largest node identifier.
func (t *Tree) MaxNodeID() int { return len(t.nodes) - 1 }

// Nodes returns all nodes indexed by their ID.
func (t *Tree) Nodes() []*Node { return t.nodes }

// Terminals returns all leaf nodes.
func (t *Tree) Terminals() []*Node {
	leaves := make([]*Node, 0, t.nLeaves)
	for _, node := range t.nodes {
		if node.IsLeaf() {
			leaves = append(leaves, node)
		}
	}
	return leaves
}

// NodeOrder returns the internal nodes in post-order, so children
// always precede their parent; the root comes last.
func (t *Tree) NodeOrder() []*Node { return t.nodeOrder }

// index assigns node and leaf identifiers and computes the post-order.
func (t *Tree) index() {
	t.nodes = t.nodes[:0]
	t.nodeOrder = t.nodeOrder[:0]
	t.nLeaves = 0
	var walk func(n *Node)
	walk = func(n *Node) {
		n.ID = len(t.nodes)
		t.nodes = append(t.nodes, n)
		if n.IsLeaf() {
			n.LeafID = t.nLeaves
			t.nLeaves++
			return
		}
		n.LeafID = -1
		for _, child := range n.children {
			walk(child)
		}
		t.nodeOrder = append(t.nodeOrder, n)
	}
	walk(t.root)
}

// Copy returns a deep copy of the tree. Node and leaf identifiers are
// preserved.
func (t *Tree) Copy() *Tree {
	nt := &Tree{}
	var clone func(n *Node) *Node
	clone = func(n *Node) *Node {
		c := &Node{
			Name:         n.Name,
			BranchLength: n.BranchLength,
		}
		for _, child := range n.children {
			cc := clone(child)
			cc.parent = c
			c.children = append(c.children, cc)
		}
		return c
	}
	nt.root = clone(t.root)
	nt.index()
	return nt
}

func (t *Tree) String() string { return t.root.String() }

// ParseNewick parses a tree in Newick format.
func ParseNewick(rd io.Reader) (*Tree, error) {
	br := bufio.NewReader(rd)
	p := &newickParser{rd: br}
	root, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	if c, err := p.skipSpace(); err == nil && c != ';' {
		return nil, fmt.Errorf("unexpected character %q after tree", c)
	}
	t := &Tree{root: root}
	t.index()
	if t.nLeaves < 2 {
		return nil, errors.New("tree has fewer than two leaves")
	}
	return t, nil
}

type newickParser struct {
	rd *bufio.Reader
}

func (p *newickParser) skipSpace() (byte, error) {
	for {
		c, err := p.rd.ReadByte()
		if err != nil {
			return 0, err
		}
		if !strings.ContainsRune(" \t\n\r", rune(c)) {
			return c, nil
		}
	}
}

func (p *newickParser) parseNode() (*Node, error) {
	c, err := p.skipSpace()
	if err != nil {
		return nil, err
	}
	node := &Node{LeafID: -1}
	if c == '(' {
		for {
			child, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			child.parent = node
			node.children = append(node.children, child)
			c, err = p.skipSpace()
			if err != nil {
				return nil, err
			}
			if c == ',' {
				continue
			}
			if c == ')' {
				break
			}
			return nil, fmt.Errorf("unexpected character %q in tree", c)
		}
	} else {
		p.rd.UnreadByte()
	}
	name, err := p.readLabel()
	if err != nil {
		return nil, err
	}
	node.Name = name
	c, err = p.rd.ReadByte()
	if err == nil && c == ':' {
		length, err := p.readLabel()
		if err != nil {
			return nil, err
		}
		node.BranchLength, err = strconv.ParseFloat(length, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid branch length %q", length)
		}
	} else if err == nil {
		p.rd.UnreadByte()
	}
	return node, nil
}

func (p *newickParser) readLabel() (string, error) {
	var b strings.Builder
	for {
		c, err := p.rd.ReadByte()
		if err != nil {
			if err == io.EOF {
				return b.String(), nil
			}
			return "", err
		}
		if strings.ContainsRune("(),:; \t\n\r", rune(c)) {
			p.rd.UnreadByte()
			return b.String(), nil
		}
		b.WriteByte(c)
	}
}
