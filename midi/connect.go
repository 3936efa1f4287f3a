package midi

import (
	"runtime"

	"github.com/remeh/sizedwaitgroup"
)

// ConnectNotes links every Note-On with the release that ends it. Tracks
// share nothing, so each one is paired on its own goroutine; a worker only
// writes inside its track's arena range.
func (f *File) ConnectNotes() {
	wg := sizedwaitgroup.New(runtime.GOMAXPROCS(0))
	for _, t := range f.Tracks {
		wg.Add()
		go func(t *Track) {
			connectTrack(f.Events, t.Start, t.End)
			wg.Done()
		}(t)
	}
	wg.Wait()
}

// connectTrack pairs notes in events[start:end] using one LIFO stack per
// (channel, key). A release with an empty stack is ignored.
func connectTrack(events []Event, start, end int) {
	var stacks [16][128][]int32
	for i := start; i < end; i++ {
		ev := &events[i]
		switch {
		case ev.IsNoteOn():
			s := &stacks[ev.Channel()][ev.Note()]
			*s = append(*s, int32(i))
		case ev.IsNoteOff():
			s := &stacks[ev.Channel()][ev.Note()]
			if len(*s) == 0 {
				continue
			}
			on := (*s)[len(*s)-1]
			*s = (*s)[:len(*s)-1]
			events[on].Sister = int32(i)
			ev.Sister = on
		}
	}
}
