package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// debugSampler lets keep out of every window high-volume debug events
// through. A zero ratio lets everything through.
type debugSampler struct {
	ratio atomic.Uint64 // keep<<32 | window
	seen  atomic.Uint64
}

func (s *debugSampler) set(keep, window int) {
	if keep <= 0 || window <= 0 {
		s.ratio.Store(0)
		return
	}
	if keep > window {
		keep = window
	}
	s.ratio.Store(uint64(keep)<<32 | uint64(window))
	s.seen.Store(0)
}

func (s *debugSampler) allow() bool {
	r := s.ratio.Load()
	keep, window := r>>32, r&0xffffffff
	if keep == 0 || window == 0 {
		return true
	}
	return (s.seen.Add(1)-1)%window < keep
}

// parseSampleSpec reads "keep/window" or "window" (meaning 1/window).
// "0" and "off" disable sampling; ok is false for anything unreadable.
func parseSampleSpec(spec string) (keep, window int, ok bool) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	switch spec {
	case "":
		return 0, 0, false
	case "0", "off", "none":
		return 0, 0, true
	}
	if a, b, found := strings.Cut(spec, "/"); found {
		k, err1 := strconv.Atoi(strings.TrimSpace(a))
		w, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil || k <= 0 || w <= 0 {
			return 0, 0, false
		}
		return k, w, true
	}
	w, err := strconv.Atoi(spec)
	if err != nil || w <= 0 {
		return 0, 0, false
	}
	return 1, w, true
}
