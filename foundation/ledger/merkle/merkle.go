// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been cleaned up, refactored, and turned into generics.

// Package merkle builds the hash trees the ledger commits to: the root of a
// block's transactions and the inclusion proofs served for them.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Hashable is the behavior tree values must provide.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// =============================================================================

// Tree is a merkle tree over values of type T. The zero value is not usable,
// construct trees with NewTree.
type Tree[T Hashable[T]] struct {
	Root     *Node[T]
	Leafs    []*Node[T]
	RootHash []byte

	hashStrategy func() hash.Hash
}

// WithHashStrategy overrides the default sha256 node hashing.
func WithHashStrategy[T Hashable[T]](hashStrategy func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a merkle tree from the ordered values. At least one
// value is required.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	t := Tree[T]{
		hashStrategy: sha256.New,
	}

	for _, option := range options {
		option(&t)
	}

	if err := t.Generate(values); err != nil {
		return nil, err
	}

	return &t, nil
}

// Generate rebuilds the tree from the specified values, replacing any
// previous contents. An odd leaf count duplicates the final leaf so every
// level pairs cleanly.
func (t *Tree[T]) Generate(values []T) error {
	if len(values) == 0 {
		return errors.New("cannot construct a tree with no values")
	}

	var leafs []*Node[T]
	for _, value := range values {
		hash, err := value.Hash()
		if err != nil {
			return err
		}

		leafs = append(leafs, &Node[T]{
			Hash:  hash,
			Value: value,
			leaf:  true,
			Tree:  t,
		})
	}

	if len(leafs)%2 == 1 {
		last := leafs[len(leafs)-1]
		leafs = append(leafs, &Node[T]{
			Hash:  last.Hash,
			Value: last.Value,
			leaf:  true,
			dup:   true,
			Tree:  t,
		})
	}

	root, err := buildLevel(leafs, t)
	if err != nil {
		return err
	}

	t.Root = root
	t.Leafs = leafs
	t.RootHash = root.Hash

	return nil
}

// Proof returns the sibling hashes and their concatenation orders for
// proving the value is in the tree. Walking the proof from the value's own
// hash, an order of 0 concatenates the proof hash first and an order of 1
// concatenates it second; hashing each step reproduces the root.
func (t *Tree[T]) Proof(value T) ([][]byte, []int64, error) {
	for _, node := range t.Leafs {
		if !node.Value.Equals(value) {
			continue
		}

		var proof [][]byte
		var order []int64

		parent := node.Parent
		for parent != nil {
			if bytes.Equal(parent.Left.Hash, node.Hash) {
				proof = append(proof, parent.Right.Hash)
				order = append(order, 1)
			} else {
				proof = append(proof, parent.Left.Hash)
				order = append(order, 0)
			}
			node = parent
			parent = parent.Parent
		}

		return proof, order, nil
	}

	return nil, nil, errors.New("value is not in the tree")
}

// Verify recomputes every level of the tree and checks the result against
// the stored root hash.
func (t *Tree[T]) Verify() error {
	computed, err := t.Root.verify()
	if err != nil {
		return err
	}

	if !bytes.Equal(t.RootHash, computed) {
		return errors.New("the computed root does not match the tree root")
	}

	return nil
}

// VerifyValue checks that the value is in the tree and that every hash on
// its path to the root is consistent.
func (t *Tree[T]) VerifyValue(value T) error {
	for _, node := range t.Leafs {
		if !node.Value.Equals(value) {
			continue
		}

		parent := node.Parent
		for parent != nil {
			left, err := parent.Left.calculateHash()
			if err != nil {
				return err
			}
			right, err := parent.Right.calculateHash()
			if err != nil {
				return err
			}

			h := t.hashStrategy()
			if _, err := h.Write(append(left, right...)); err != nil {
				return err
			}
			if !bytes.Equal(h.Sum(nil), parent.Hash) {
				return errors.New("a hash on the value's path does not match")
			}

			parent = parent.Parent
		}

		return nil
	}

	return errors.New("value is not in the tree")
}

// Values returns the values the tree was generated from, without the
// duplicated pairing leaf.
func (t *Tree[T]) Values() []T {
	var values []T
	for _, node := range t.Leafs {
		if node.dup {
			continue
		}
		values = append(values, node.Value)
	}

	return values
}

// RootHex returns the hex encoded root hash.
func (t *Tree[T]) RootHex() string {
	return hexutil.Encode(t.RootHash)
}

// =============================================================================

// Node is one position in the tree: the root, an intermediate hash, or a
// leaf carrying a value.
type Node[T Hashable[T]] struct {
	Tree   *Tree[T]
	Parent *Node[T]
	Left   *Node[T]
	Right  *Node[T]
	Hash   []byte
	Value  T
	leaf   bool
	dup    bool
}

// verify walks down to the leaves recomputing the hash at every level.
func (n *Node[T]) verify() ([]byte, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	left, err := n.Left.verify()
	if err != nil {
		return nil, err
	}
	right, err := n.Right.verify()
	if err != nil {
		return nil, err
	}

	h := n.Tree.hashStrategy()
	if _, err := h.Write(append(left, right...)); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

// calculateHash recomputes this node's hash from its immediate children.
func (n *Node[T]) calculateHash() ([]byte, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	h := n.Tree.hashStrategy()
	if _, err := h.Write(append(n.Left.Hash, n.Right.Hash...)); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

// String supports debugging output for a node.
func (n *Node[T]) String() string {
	return fmt.Sprintf("%t %t %v %v", n.leaf, n.dup, n.Hash, n.Value)
}

// =============================================================================

// buildLevel pairs the nodes of one level into their parents, recursing
// until a single root remains. An unpaired tail node pairs with itself.
func buildLevel[T Hashable[T]](nl []*Node[T], t *Tree[T]) (*Node[T], error) {
	var nodes []*Node[T]

	for i := 0; i < len(nl); i += 2 {
		left, right := i, i+1
		if i+1 == len(nl) {
			right = i
		}

		h := t.hashStrategy()
		if _, err := h.Write(append(nl[left].Hash, nl[right].Hash...)); err != nil {
			return nil, err
		}

		n := Node[T]{
			Left:  nl[left],
			Right: nl[right],
			Hash:  h.Sum(nil),
			Tree:  t,
		}

		nodes = append(nodes, &n)
		nl[left].Parent = &n
		nl[right].Parent = &n

		if len(nl) == 2 {
			return &n, nil
		}
	}

	return buildLevel(nodes, t)
}
