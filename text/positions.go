package text

import (
	"container/heap"

	"github.com/kebukeYi/TrainRecord/model"
)

// containsAllWithin reports whether one position can be picked from every
// list so that all picks fall within maxDistance of each other. Empty lists
// carry no position information and are ignored; when every list is empty
// the answer is true. No lists at all never match.
func containsAllWithin(positionLists [][]int, maxDistance int) bool {
	if len(positionLists) == 0 {
		return false
	}
	hp := make(positionHeap, 0, len(positionLists))
	maxPos := 0
	for _, list := range positionLists {
		if len(list) == 0 {
			continue
		}
		hp = append(hp, positionCursor{list: list})
		if len(hp) == 1 || list[0] > maxPos {
			maxPos = list[0]
		}
	}
	if len(hp) == 0 {
		return true
	}
	heap.Init(&hp)
	for {
		// 堆顶是当前最小位置;
		least := hp[0]
		if maxPos-least.value() <= maxDistance {
			return true
		}
		least.offset++
		if least.offset >= len(least.list) {
			return false
		}
		if least.value() > maxPos {
			maxPos = least.value()
		}
		hp[0] = least
		heap.Fix(&hp, 0)
	}
}

// containsPhrase reports whether the lists, one per non-empty token in
// tokensWithStopWords, hold consecutive positions in token order. Every ""
// token is a stop word occupying one position. An empty list is also treated
// as a gap of one position.
func containsPhrase(positionLists [][]int, tokensWithStopWords []string) bool {
	lists := make([][]int, 0, len(positionLists))
	offsets := make([]int, 0, len(positionLists))
	delta, next := 0, 0
	for _, tok := range tokensWithStopWords {
		if tok == "" {
			delta++
			continue
		}
		if next >= len(positionLists) {
			return false
		}
		list := positionLists[next]
		next++
		if len(list) > 0 {
			lists = append(lists, list)
			offsets = append(offsets, delta)
		}
		delta++
	}
	if next != len(positionLists) {
		return false
	}
	if len(lists) == 0 {
		return true
	}

	idx := make([]int, len(lists))
	candidate := lists[0][0] - offsets[0]
	for {
		aligned := true
		for i, list := range lists {
			for idx[i] < len(list) && list[idx[i]]-offsets[i] < candidate {
				idx[i]++
			}
			if idx[i] >= len(list) {
				return false
			}
			if base := list[idx[i]] - offsets[i]; base > candidate {
				candidate = base
				aligned = false
				break
			}
		}
		if aligned {
			return true
		}
	}
}

// PositionList reads the position list stored in a text index entry value.
func PositionList(e model.IndexEntry) []int {
	if len(e.Value) == 0 {
		return nil
	}
	nested, ok := e.Value[0].(model.Tuple)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(nested))
	for _, item := range nested {
		if p, ok := item.(int64); ok {
			out = append(out, int(p))
		}
	}
	return out
}

func positionLists(group []model.IndexEntry) [][]int {
	out := make([][]int, len(group))
	for i, e := range group {
		out[i] = PositionList(e)
	}
	return out
}

type positionCursor struct {
	list   []int
	offset int
}

func (c positionCursor) value() int {
	return c.list[c.offset]
}

type positionHeap []positionCursor

func (hp positionHeap) Len() int {
	return len(hp)
}

func (hp positionHeap) Less(i, j int) bool {
	return hp[i].value() < hp[j].value()
}

func (hp positionHeap) Swap(i, j int) {
	hp[i], hp[j] = hp[j], hp[i]
}

func (hp *positionHeap) Push(x any) {
	*hp = append(*hp, x.(positionCursor))
}

func (hp *positionHeap) Pop() any {
	old := *hp
	v := old[len(old)-1]
	*hp = old[:len(old)-1]
	return v
}
