package smg

import (
	"fmt"
	"math/rand"
)

// Searcher represents a strategy for finding the next state to explore.
type Searcher interface {
	// Returns the next state to explore.
	SelectState() *State

	// Adds states to the current searcher.
	AddState(state *State)
}

// NewSearcher returns a searcher by name: "dfs", "bfs", "random",
// "random-path" or "multi" (random-path and dfs in turn).
func NewSearcher(name string, rand *rand.Rand) (Searcher, error) {
	switch name {
	case "", "dfs":
		return NewDFSSearcher(), nil
	case "bfs":
		return NewBFSSearcher(), nil
	case "random":
		return NewRandomSearcher(rand), nil
	case "random-path":
		return NewRandomPathSearcher(rand), nil
	case "multi":
		return NewMultiSearcher(NewRandomPathSearcher(rand), NewDFSSearcher()), nil
	default:
		return nil, fmt.Errorf("unknown search strategy: %q", name)
	}
}

var _ Searcher = (*MultiSearcher)(nil)

// MultiSearcher represents a Searcher that chooses a searcher round-robin.
// A state added to it is held by every searcher, so callers must ignore
// states that were already selected.
type MultiSearcher struct {
	searchers []Searcher
	index     int
}

// NewMultiSearcher returns a new instance of MultiSearcher.
func NewMultiSearcher(searchers ...Searcher) *MultiSearcher {
	return &MultiSearcher{searchers: searchers}
}

// SelectState returns the next state to explore from the next searcher
// that has one.
func (s *MultiSearcher) SelectState() *State {
	for range s.searchers {
		searcher := s.searchers[s.index]
		if s.index++; s.index >= len(s.searchers) {
			s.index = 0
		}
		if state := searcher.SelectState(); state != nil {
			return state
		}
	}
	return nil
}

// AddState adds a new state to the searcher.
func (s *MultiSearcher) AddState(state *State) {
	for _, searcher := range s.searchers {
		searcher.AddState(state)
	}
}

// DFSSearcher represents a searcher with a depth-first search strategy.
type DFSSearcher struct {
	states []*State
}

// NewDFSSearcher returns a new instance of DFSSearcher.
func NewDFSSearcher() *DFSSearcher {
	return &DFSSearcher{}
}

// SelectState returns the next state to explore.
func (s *DFSSearcher) SelectState() *State {
	if len(s.states) == 0 {
		return nil
	}
	state := s.states[len(s.states)-1]
	s.states = s.states[:len(s.states)-1]
	return state
}

// AddState adds a new state to the searcher.
func (s *DFSSearcher) AddState(state *State) {
	s.states = append(s.states, state)
}

// BFSSearcher represents a searcher with a breadth-first search strategy.
type BFSSearcher struct {
	states []*State
}

// NewBFSSearcher returns a new instance of BFSSearcher.
func NewBFSSearcher() *BFSSearcher {
	return &BFSSearcher{}
}

// SelectState returns the next state to explore.
func (s *BFSSearcher) SelectState() *State {
	if len(s.states) == 0 {
		return nil
	}
	state := s.states[0]
	s.states = s.states[1:]
	return state
}

// AddState adds a new state to the searcher.
func (s *BFSSearcher) AddState(state *State) {
	s.states = append(s.states, state)
}

type RandomSearcher struct {
	states []*State
	rand   *rand.Rand
}

func NewRandomSearcher(rand *rand.Rand) *RandomSearcher {
	return &RandomSearcher{
		rand: rand,
	}
}

// SelectState returns a random state to explore.
func (s *RandomSearcher) SelectState() *State {
	if len(s.states) == 0 {
		return nil
	}
	i := s.rand.Intn(len(s.states))
	state := s.states[i]
	s.states = append(s.states[:i], s.states[i+1:]...)
	return state
}

// AddState adds a new state to the searcher.
func (s *RandomSearcher) AddState(state *State) {
	s.states = append(s.states, state)
}

// RandomPathSearcher randomly walks the fork tree from the root to a
// pending state, so every branch point is taken with equal probability
// regardless of how many states lie below it.
type RandomPathSearcher struct {
	root  *pathNode
	nodes map[*State]*pathNode
	rand  *rand.Rand
}

// pathNode is a state in the fork tree. Pending counts the queued states in
// the node's subtree, including itself.
type pathNode struct {
	state    *State
	parent   *pathNode
	children []*pathNode
	queued   bool
	pending  int
}

// NewRandomPathSearcher returns a new instance of RandomPathSearcher.
func NewRandomPathSearcher(rand *rand.Rand) *RandomPathSearcher {
	return &RandomPathSearcher{
		nodes: make(map[*State]*pathNode),
		rand:  rand,
	}
}

// SelectState returns a pending state found by a random walk from the root.
func (s *RandomPathSearcher) SelectState() *State {
	node := s.root
	if node == nil || node.pending == 0 {
		return nil
	}

	for {
		var choices []*pathNode
		if node.queued {
			choices = append(choices, node)
		}
		for _, child := range node.children {
			if child.pending > 0 {
				choices = append(choices, child)
			}
		}

		next := choices[s.rand.Intn(len(choices))]
		if next != node {
			node = next
			continue
		}

		// Return the chosen node's state and remove it from the counts.
		node.queued = false
		for n := node; n != nil; n = n.parent {
			n.pending--
		}
		return node.state
	}
}

// AddState links state into the fork tree under its parent and queues it.
func (s *RandomPathSearcher) AddState(state *State) {
	node := s.nodes[state]
	if node == nil {
		node = &pathNode{state: state}
		if parent := s.nodes[state.Parent()]; parent != nil {
			node.parent = parent
			parent.children = append(parent.children, node)
		} else if s.root == nil {
			s.root = node
		} else {
			node.parent = s.root
			s.root.children = append(s.root.children, node)
		}
		s.nodes[state] = node
	}

	if node.queued {
		return
	}
	node.queued = true
	for n := node; n != nil; n = n.parent {
		n.pending++
	}
}
