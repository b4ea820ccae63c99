// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package cache

// lruNode is a key in the recency list.
type lruNode struct {
	key  string
	prev *lruNode
	next *lruNode
}

// LRUPolicy evicts the least recently accessed key. All operations are O(1):
// a map finds the node and a doubly-linked list with sentinel head and tail
// keeps recency order (head.next is newest, tail.prev is oldest).
//
// LRUPolicy is not safe for concurrent use; MemoryTier serializes access.
type LRUPolicy struct {
	nodes map[string]*lruNode
	head  *lruNode
	tail  *lruNode
}

// NewLRUPolicy returns an empty LRU policy.
func NewLRUPolicy() *LRUPolicy {
	p := &LRUPolicy{
		nodes: make(map[string]*lruNode),
		head:  &lruNode{},
		tail:  &lruNode{},
	}
	p.head.next = p.tail
	p.tail.prev = p.head
	return p
}

func (p *LRUPolicy) Name() string { return string(PolicyLRU) }

// Access records a read or write of key, inserting it if unknown.
func (p *LRUPolicy) Access(key string) {
	if n, ok := p.nodes[key]; ok {
		p.unlink(n)
		p.pushFront(n)
		return
	}
	n := &lruNode{key: key}
	p.nodes[key] = n
	p.pushFront(n)
}

func (p *LRUPolicy) Remove(key string) {
	if n, ok := p.nodes[key]; ok {
		p.unlink(n)
		delete(p.nodes, key)
	}
}

// Victim removes and returns the least recently used key.
func (p *LRUPolicy) Victim() (string, bool) {
	oldest := p.tail.prev
	if oldest == p.head {
		return "", false
	}
	p.unlink(oldest)
	delete(p.nodes, oldest.key)
	return oldest.key, true
}

func (p *LRUPolicy) Len() int { return len(p.nodes) }

func (p *LRUPolicy) pushFront(n *lruNode) {
	n.prev = p.head
	n.next = p.head.next
	p.head.next.prev = n
	p.head.next = n
}

func (p *LRUPolicy) unlink(n *lruNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}
