// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package project reconstructs the tree of tracks, clips, sequences,
// and sample blocks that a parsed binary-XML document describes, and
// implements the mutate-and-reserialize operations (validate, fixup,
// prune, extract) that run against that tree once the store beneath
// it is reachable.
package project

import "github.com/aup3tools/aup3-recover/internal/bxml"

// Node is one element of the parsed project tree: a tag name, its
// attributes, at most one character-data payload (last write wins),
// and its children in document order.
type Node struct {
	Tag      string
	Attrs    []bxml.Attribute
	CharData string
	Children []*Node

	Parent      *Node
	ParentIndex int
}

// TagName implements bxml.TreeNode.
func (n *Node) TagName() string { return n.Tag }

// Attributes implements bxml.TreeNode.
func (n *Node) Attributes() []bxml.Attribute { return n.Attrs }

// Data implements bxml.TreeNode.
func (n *Node) Data() string { return n.CharData }

// treeView adapts a *Node to bxml.TreeNode. It exists separately from
// Node because the interface's Children() method would otherwise
// collide with the Node.Children field.
type treeView struct{ *Node }

// Children implements bxml.TreeNode.
func (v treeView) Children() []bxml.TreeNode {
	out := make([]bxml.TreeNode, len(v.Node.Children))
	for i, c := range v.Node.Children {
		out[i] = treeView{c}
	}
	return out
}

// SetAttribute upserts an attribute by name equality, matching the
// authoring tool's in-place mutation semantics: an existing attribute
// with the same name is overwritten rather than duplicated.
func (n *Node) SetAttribute(name string, v bxml.Attribute) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i] = v
			return
		}
	}
	n.Attrs = append(n.Attrs, v)
}

// Attribute looks up an attribute by name.
func (n *Node) Attribute(name string) (bxml.Attribute, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a, true
		}
	}
	return bxml.Attribute{}, false
}

// StringPool tracks the reusable (deduplicated) and value (append-only)
// string arenas of a parsed document. The reusable pool's insertion
// order becomes the serialization dictionary.
type StringPool struct {
	reusable      []string
	reusableIndex map[string]int
	values        []string
}

// NewStringPool returns an empty pool.
func NewStringPool() *StringPool {
	return &StringPool{reusableIndex: make(map[string]int)}
}

// Intern returns name, adding it to the reusable pool if not already
// present. Membership, not the returned string, is what matters —
// Go strings need no separate storage to be "the same" by value.
func (p *StringPool) Intern(name string) string {
	if _, ok := p.reusableIndex[name]; !ok {
		p.reusableIndex[name] = len(p.reusable)
		p.reusable = append(p.reusable, name)
	}
	return name
}

// InternValue records a string-kind attribute value in the value
// pool. Unlike Intern, this never deduplicates.
func (p *StringPool) InternValue(value string) string {
	p.values = append(p.values, value)
	return value
}

// Names returns the reusable pool in insertion order — the dictionary
// Serialize must be given to re-emit this document's tag and
// attribute names.
func (p *StringPool) Names() []string {
	out := make([]string, len(p.reusable))
	copy(out, p.reusable)
	return out
}

// Has reports whether name is already interned.
func (p *StringPool) Has(name string) bool {
	_, ok := p.reusableIndex[name]
	return ok
}

// ValueCount returns the number of entries in the value pool.
func (p *StringPool) ValueCount() int { return len(p.values) }
