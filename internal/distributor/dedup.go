package distributor

import "sync"

// dedupWindow remembers the last size keys in insertion order.
type dedupWindow struct {
	mu    sync.Mutex
	size  int
	seen  map[string]struct{}
	order []string
	next  int
}

func newDedupWindow(size int) *dedupWindow {
	if size <= 0 {
		size = 1
	}
	return &dedupWindow{
		size:  size,
		seen:  make(map[string]struct{}, size),
		order: make([]string, 0, size),
	}
}

// add records key and reports whether it was new.
func (w *dedupWindow) add(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[key]; ok {
		return false
	}

	if len(w.order) < w.size {
		w.order = append(w.order, key)
	} else {
		delete(w.seen, w.order[w.next])
		w.order[w.next] = key
		w.next = (w.next + 1) % w.size
	}
	w.seen[key] = struct{}{}
	return true
}
