package engine

import (
	"container/heap"

	"github.com/sambeau/ripple/pkg/ripple/analyzer"
	rerrors "github.com/sambeau/ripple/pkg/ripple/errors"
)

// waveItem keys the priority queue by rank; seq breaks ties FIFO.
type waveItem struct {
	node *Node
	seq  int
}

type waveQueue struct {
	items []waveItem
	next  int
}

func (q *waveQueue) Len() int { return len(q.items) }
func (q *waveQueue) Less(i, j int) bool {
	if q.items[i].node.Rank != q.items[j].node.Rank {
		return q.items[i].node.Rank < q.items[j].node.Rank
	}
	return q.items[i].seq < q.items[j].seq
}
func (q *waveQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *waveQueue) Push(x any)    { q.items = append(q.items, x.(waveItem)) }
func (q *waveQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

func (q *waveQueue) enqueue(n *Node) {
	if n.dirty {
		return
	}
	n.dirty = true
	heap.Push(q, waveItem{node: n, seq: q.next})
	q.next++
}

func (q *waveQueue) pop() *Node {
	item := heap.Pop(q).(waveItem)
	item.node.dirty = false
	return item.node
}

// clear drops an aborted wave's queue, resetting the dirty marks of
// nodes that were never popped.
func (q *waveQueue) clear() {
	for _, item := range q.items {
		item.node.dirty = false
	}
	q.items = nil
}

// journal records every mutation a wave makes so a failing wave can
// leave the graph exactly as it found it.
type journal struct {
	values []savedValue
	folds  []savedFold
}

type savedValue struct {
	node *Node
	prev Object
}

type savedFold struct {
	cell *foldCell
	prev foldCell
}

func (j *journal) recordValue(n *Node) {
	j.values = append(j.values, savedValue{node: n, prev: n.Cached})
}

func (j *journal) recordFold(cell *foldCell) {
	j.folds = append(j.folds, savedFold{cell: cell, prev: *cell})
}

func (j *journal) rollback() {
	for i := len(j.values) - 1; i >= 0; i-- {
		j.values[i].node.Cached = j.values[i].prev
	}
	for i := len(j.folds) - 1; i >= 0; i-- {
		*j.folds[i].cell = j.folds[i].prev
	}
}

// notification is a sink change handed to subscribers after the wave,
// once the graph lock is released.
type notification struct {
	name  string
	value Object
	fns   []SubscriberFunc
}

// Push delivers an external event: writes the new value into the named
// source, then propagates in strictly non-decreasing rank order until
// the queue drains. Exactly one wave runs at a time; each node's formula
// runs at most once per wave.
//
// On any evaluation error the wave is rolled back, caches included, and
// the structured error is returned.
func (g *Graph) Push(name string, value Object) *rerrors.RippleError {
	g.mu.Lock()
	notifications, err := g.pushLocked(name, value)
	g.mu.Unlock()
	if err != nil {
		return err
	}

	for _, note := range notifications {
		for _, fn := range note.fns {
			fn(note.name, note.value)
		}
	}
	return nil
}

func (g *Graph) pushLocked(name string, value Object) ([]notification, *rerrors.RippleError) {
	node, ok := g.nodes[name]
	if !ok {
		return nil, rerrors.New("PUSH-0002", map[string]any{"Name": name})
	}
	if node.Kind != analyzer.SourceNode {
		return nil, rerrors.New("PUSH-0001", map[string]any{"Name": name})
	}

	j := &journal{}
	j.recordValue(node)
	node.Cached = value

	pq := &waveQueue{}
	heap.Init(pq)
	for _, child := range node.BackRefs {
		pq.enqueue(g.nodes[child])
	}
	// Nodes holding pre cells advance every wave; that is what turns
	// pre(self, v0) into a per-push counter instead of a frozen value.
	for _, s := range g.stateful {
		pq.enqueue(s)
	}

	g.lastWave = g.lastWave[:0]
	var changedSinks []*Node
	steps := 0

	for pq.Len() > 0 {
		n := pq.pop()
		g.lastWave = append(g.lastWave, n.Name)

		steps++
		if g.stepBudget > 0 && steps > g.stepBudget {
			pq.clear()
			j.rollback()
			return nil, rerrors.New("EVAL-0005", map[string]any{"Steps": g.stepBudget})
		}

		result := g.evalFormula(n, j)
		if errObj, ok := result.(*Error); ok {
			pq.clear()
			j.rollback()
			return nil, wrapNodeError(n.Name, errObj.Err)
		}

		if !Equal(result, n.Cached) {
			j.recordValue(n)
			n.Cached = result
			for _, child := range n.BackRefs {
				pq.enqueue(g.nodes[child])
			}
			if n.Kind == analyzer.SinkNode {
				changedSinks = append(changedSinks, n)
			}
		}
	}

	// The wave is complete: commit pre snapshots for the next wave.
	for _, s := range g.stateful {
		for _, ref := range s.PreRefs {
			if target, ok := g.nodes[ref]; ok && target.Cached != nil {
				s.preCell[ref] = target.Cached
			}
		}
	}

	notifications := make([]notification, 0, len(changedSinks))
	for _, sink := range changedSinks {
		fns := g.subscribers[sink.Name]
		if len(fns) == 0 {
			continue
		}
		notifications = append(notifications, notification{
			name:  sink.Name,
			value: sink.Cached,
			fns:   append([]SubscriberFunc{}, fns...),
		})
	}

	return notifications, nil
}
