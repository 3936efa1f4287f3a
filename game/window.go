package game

// entry is one judged note in the adaptive window
type entry struct {
	bad   bool
	index int   // timeline index, -1 for an incorrect input
	time  int64 // song time the judgement belongs to
}

// window is a fixed capacity ring of the most recent judgements
type window struct {
	buf  []entry
	head int // next write position
	size int
}

func newWindow(capacity int) *window {
	return &window{buf: make([]entry, capacity)}
}

func (w *window) push(e entry) {
	w.buf[w.head] = e
	w.head = (w.head + 1) % len(w.buf)
	if w.size < len(w.buf) {
		w.size++
	}
}

func (w *window) reset() {
	w.head, w.size = 0, 0
}

// badFraction returns the share of bad entries at or after minTime and how
// many entries were counted
func (w *window) badFraction(minTime int64) (float64, int) {
	bad, n := 0, 0
	for i := 0; i < w.size; i++ {
		e := w.buf[i]
		if e.time < minTime {
			continue
		}
		n++
		if e.bad {
			bad++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return float64(bad) / float64(n), n
}
