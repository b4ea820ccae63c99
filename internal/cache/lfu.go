// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package cache

// lfuNode is a key with its access count.
type lfuNode struct {
	key  string
	freq int
	prev *lfuNode
	next *lfuNode
}

// freqList holds the keys sharing one access count, most recent first.
type freqList struct {
	head *lfuNode
	tail *lfuNode
	size int
}

func newFreqList() *freqList {
	fl := &freqList{head: &lfuNode{}, tail: &lfuNode{}}
	fl.head.next = fl.tail
	fl.tail.prev = fl.head
	return fl
}

func (fl *freqList) pushFront(n *lfuNode) {
	n.prev = fl.head
	n.next = fl.head.next
	fl.head.next.prev = n
	fl.head.next = n
	fl.size++
}

func (fl *freqList) remove(n *lfuNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
	fl.size--
}

func (fl *freqList) back() *lfuNode {
	if fl.size == 0 {
		return nil
	}
	return fl.tail.prev
}

// LFUPolicy evicts the least frequently accessed key, breaking ties by
// recency. Popular titles requested by many catalog pages stay resident
// while one-off lookups age out first.
//
// keys finds a node, freqs groups nodes by count, and minFreq points at the
// lowest non-empty group so Victim is O(1) in the common case.
//
// LFUPolicy is not safe for concurrent use; MemoryTier serializes access.
type LFUPolicy struct {
	keys    map[string]*lfuNode
	freqs   map[int]*freqList
	minFreq int
}

// NewLFUPolicy returns an empty LFU policy.
func NewLFUPolicy() *LFUPolicy {
	return &LFUPolicy{
		keys:  make(map[string]*lfuNode),
		freqs: make(map[int]*freqList),
	}
}

func (p *LFUPolicy) Name() string { return string(PolicyLFU) }

// Access increments key's count, inserting it with count 1 if unknown.
func (p *LFUPolicy) Access(key string) {
	n, ok := p.keys[key]
	if !ok {
		n = &lfuNode{key: key, freq: 1}
		p.keys[key] = n
		p.list(1).pushFront(n)
		p.minFreq = 1
		return
	}

	old := p.freqs[n.freq]
	old.remove(n)
	if old.size == 0 {
		delete(p.freqs, n.freq)
		if p.minFreq == n.freq {
			p.minFreq = n.freq + 1
		}
	}
	n.freq++
	p.list(n.freq).pushFront(n)
}

func (p *LFUPolicy) Remove(key string) {
	n, ok := p.keys[key]
	if !ok {
		return
	}
	fl := p.freqs[n.freq]
	fl.remove(n)
	if fl.size == 0 {
		delete(p.freqs, n.freq)
	}
	delete(p.keys, key)
	if len(p.keys) == 0 {
		p.minFreq = 0
	}
}

// Victim removes and returns the least frequently used key.
func (p *LFUPolicy) Victim() (string, bool) {
	if len(p.keys) == 0 {
		return "", false
	}

	fl, ok := p.freqs[p.minFreq]
	if !ok {
		// Remove can empty the minimum group; rescan.
		p.minFreq = 0
		for f := range p.freqs {
			if p.minFreq == 0 || f < p.minFreq {
				p.minFreq = f
			}
		}
		fl = p.freqs[p.minFreq]
	}

	n := fl.back()
	fl.remove(n)
	if fl.size == 0 {
		delete(p.freqs, n.freq)
	}
	delete(p.keys, n.key)
	return n.key, true
}

func (p *LFUPolicy) Len() int { return len(p.keys) }

// Frequency returns key's access count, or 0.
func (p *LFUPolicy) Frequency(key string) int {
	if n, ok := p.keys[key]; ok {
		return n.freq
	}
	return 0
}

func (p *LFUPolicy) list(freq int) *freqList {
	fl, ok := p.freqs[freq]
	if !ok {
		fl = newFreqList()
		p.freqs[freq] = fl
	}
	return fl
}
