package graph

import (
	"container/list"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ProcessingQueue holds nodes that are ready to be processed (in-degree 0)
// for Kahn's algorithm. Nodes are kept in name order so that every
// traversal is deterministic.
type ProcessingQueue struct {
	queue *list.List
}

// NewProcessingQueue creates a new empty processing queue.
func NewProcessingQueue() *ProcessingQueue {
	return &ProcessingQueue{
		queue: list.New(),
	}
}

// InitializeQueue creates a processing queue populated with all nodes
// that have in-degree of 0 (no dependencies).
func (g *Graph) InitializeQueue(inDegree map[string]int) *ProcessingQueue {
	pq := NewProcessingQueue()

	for name, degree := range inDegree {
		if degree == 0 {
			pq.Enqueue(name)
		}
	}

	return pq
}

// Enqueue inserts a node at its sorted position.
func (pq *ProcessingQueue) Enqueue(node string) {
	for e := pq.queue.Front(); e != nil; e = e.Next() {
		if node < e.Value.(string) {
			pq.queue.InsertBefore(node, e)
			return
		}
	}
	pq.queue.PushBack(node)
}

// Dequeue removes and returns the smallest ready node.
// Returns empty string and false if queue is empty.
func (pq *ProcessingQueue) Dequeue() (string, bool) {
	if pq.queue.Len() == 0 {
		return "", false
	}
	elem := pq.queue.Front()
	pq.queue.Remove(elem)
	return elem.Value.(string), true
}

// Len returns the number of nodes in the queue.
func (pq *ProcessingQueue) Len() int {
	return pq.queue.Len()
}

// IsEmpty returns true if the queue has no nodes.
func (pq *ProcessingQueue) IsEmpty() bool {
	return pq.queue.Len() == 0
}

// CalculateInDegrees computes the number of incoming edges for each node.
// Returns a map of table name -> in-degree count.
func (g *Graph) CalculateInDegrees() map[string]int {
	inDegree := make(map[string]int)

	for name := range g.Nodes {
		inDegree[name] = 0
	}

	for _, children := range g.Children {
		for _, child := range children {
			inDegree[child]++
		}
	}

	return inDegree
}

// ErrCycleDetected is matched by CycleError.
var ErrCycleDetected = errors.New("cycle detected in dependency graph")

// CycleInfo contains information about incomplete processing due to cycles.
type CycleInfo struct {
	TotalNodes        int      // Total number of nodes in the graph
	ProcessedNodes    int      // Number of nodes successfully processed
	UnprocessedNodes  []string // Nodes that couldn't be processed (part of or blocked by cycle)
	CycleParticipants []string // Nodes that are actually part of a cycle (subset of UnprocessedNodes)
	CyclePath         []string // Ordered path showing the cycle (e.g., [A, B, C, A])
}

// CycleError reports which tables form a cycle and which are blocked by it.
type CycleError struct {
	Info *CycleInfo
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	msg := fmt.Sprintf("cycle detected in dependency graph: %d of %d tables could not be ordered",
		len(e.Info.UnprocessedNodes), e.Info.TotalNodes)

	if len(e.Info.CyclePath) > 0 {
		msg += fmt.Sprintf("\nCycle path: %s", strings.Join(e.Info.CyclePath, " -> "))
	}

	if len(e.Info.CycleParticipants) > 0 {
		msg += fmt.Sprintf("\nTables in cycle: %s", strings.Join(e.Info.CycleParticipants, ", "))
	}

	if blocked := e.Info.Blocked(); len(blocked) > 0 {
		msg += fmt.Sprintf("\nTables blocked by cycle: %s", strings.Join(blocked, ", "))
	}

	return msg
}

// Is matches ErrCycleDetected.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// Blocked returns the unprocessed tables that are not themselves part of a cycle.
func (c *CycleInfo) Blocked() []string {
	participants := make(map[string]bool, len(c.CycleParticipants))
	for _, p := range c.CycleParticipants {
		participants[p] = true
	}

	var blocked []string
	for _, u := range c.UnprocessedNodes {
		if !participants[u] {
			blocked = append(blocked, u)
		}
	}
	return blocked
}

// DetectIncompleteProcessing runs Kahn's algorithm and returns information
// about any nodes that couldn't be processed, or nil when there is no cycle.
func (g *Graph) DetectIncompleteProcessing() *CycleInfo {
	_, processed := g.kahn()
	if len(processed) == len(g.Nodes) {
		return nil
	}

	var unprocessed []string
	unprocessedSet := make(map[string]bool)
	for _, name := range g.AllNodes() {
		if !processed[name] {
			unprocessed = append(unprocessed, name)
			unprocessedSet[name] = true
		}
	}

	var cycleParticipants []string
	for _, node := range unprocessed {
		if g.canReachSelf(node, unprocessedSet) {
			cycleParticipants = append(cycleParticipants, node)
		}
	}

	var cyclePath []string
	if len(cycleParticipants) > 0 {
		cyclePath = g.FindCyclePath(cycleParticipants[0], unprocessedSet)
	}

	return &CycleInfo{
		TotalNodes:        len(g.Nodes),
		ProcessedNodes:    len(processed),
		UnprocessedNodes:  unprocessed,
		CycleParticipants: cycleParticipants,
		CyclePath:         cyclePath,
	}
}

// HasCycle returns true if the dependency graph contains a cycle.
func (g *Graph) HasCycle() bool {
	return g.DetectIncompleteProcessing() != nil
}

// FindCyclePath finds the path that forms a cycle starting from the given node.
// Returns the ordered list of nodes forming the cycle (including the start node at both ends).
func (g *Graph) FindCyclePath(start string, allowedNodes map[string]bool) []string {
	visited := make(map[string]bool)
	path := []string{start}

	if g.dfsFindPath(start, start, visited, allowedNodes, &path) {
		return path
	}

	return nil
}

// dfsFindPath performs DFS to find a path back to the target node.
func (g *Graph) dfsFindPath(current, target string, visited, allowedNodes map[string]bool, path *[]string) bool {
	for _, child := range g.GetChildren(current) {
		if !allowedNodes[child] {
			continue
		}

		if child == target {
			*path = append(*path, target)
			return true
		}

		if visited[child] {
			continue
		}

		visited[child] = true
		*path = append(*path, child)

		if g.dfsFindPath(child, target, visited, allowedNodes, path) {
			return true
		}

		*path = (*path)[:len(*path)-1]
	}

	return false
}

// canReachSelf checks if a node can reach itself through the subgraph
// defined by the allowedNodes set.
func (g *Graph) canReachSelf(start string, allowedNodes map[string]bool) bool {
	visited := make(map[string]bool)
	return g.dfsCanReach(start, start, visited, allowedNodes, true)
}

// dfsCanReach performs DFS to check if we can reach the target node.
// isStart is true only for the initial call to avoid immediate self-match.
func (g *Graph) dfsCanReach(current, target string, visited, allowedNodes map[string]bool, isStart bool) bool {
	if current == target && !isStart {
		return true
	}

	if visited[current] || !allowedNodes[current] {
		return false
	}

	visited[current] = true

	for _, child := range g.GetChildren(current) {
		if g.dfsCanReach(child, target, visited, allowedNodes, false) {
			return true
		}
	}

	return false
}

func (g *Graph) kahn() ([]string, map[string]bool) {
	inDegree := g.CalculateInDegrees()
	queue := g.InitializeQueue(inDegree)

	var result []string
	processed := make(map[string]bool, len(g.Nodes))

	for !queue.IsEmpty() {
		node, _ := queue.Dequeue()
		result = append(result, node)
		processed[node] = true

		for _, child := range g.GetChildren(node) {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue.Enqueue(child)
			}
		}
	}

	return result, processed
}

// TopologicalSort returns tables in topological order using Kahn's
// algorithm, parents first. Ties are broken by table name. Returns a
// *CycleError if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	result, _ := g.kahn()
	if len(result) != len(g.Nodes) {
		return nil, &CycleError{Info: g.DetectIncompleteProcessing()}
	}
	return result, nil
}

// LoadOrder returns the order in which rows can be inserted without
// violating foreign keys: referenced tables before referencing ones.
func (g *Graph) LoadOrder() ([]string, error) {
	return g.TopologicalSort()
}

// UnloadOrder returns the order in which rows can be deleted without
// violating foreign keys: the reverse of LoadOrder.
func (g *Graph) UnloadOrder() ([]string, error) {
	loadOrder, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	unloadOrder := make([]string, len(loadOrder))
	for i, table := range loadOrder {
		unloadOrder[len(loadOrder)-1-i] = table
	}

	return unloadOrder, nil
}

// Validate checks the graph for cycles.
func (g *Graph) Validate() error {
	if cycleInfo := g.DetectIncompleteProcessing(); cycleInfo != nil {
		return &CycleError{Info: cycleInfo}
	}
	return nil
}

// Levels groups tables by depth: level 0 has no parents, level n only
// depends on tables of lower levels. Tables in a cycle are omitted.
func (g *Graph) Levels() [][]string {
	inDegree := g.CalculateInDegrees()
	var current []string
	for name, d := range inDegree {
		if d == 0 {
			current = append(current, name)
		}
	}
	sort.Strings(current)

	var levels [][]string
	for len(current) > 0 {
		levels = append(levels, current)
		var next []string
		for _, node := range current {
			for _, child := range g.GetChildren(node) {
				inDegree[child]--
				if inDegree[child] == 0 {
					next = append(next, child)
				}
			}
		}
		sort.Strings(next)
		current = next
	}
	return levels
}
