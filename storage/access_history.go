package storage

// accessHistory is a fixed-capacity ring holding the k most recent access
// timestamps of a frame, oldest first.
type accessHistory struct {
	buf   []Timestamp
	head  int // index of the oldest retained timestamp
	count int
}

func newAccessHistory(k int) *accessHistory {
	return &accessHistory{buf: make([]Timestamp, k)}
}

// push records ts, overwriting the oldest entry once k are held
func (h *accessHistory) push(ts Timestamp) {
	k := len(h.buf)
	if h.count < k {
		h.buf[(h.head+h.count)%k] = ts
		h.count++
		return
	}
	h.buf[h.head] = ts
	h.head = (h.head + 1) % k
}

// oldest returns the earliest retained timestamp. When the ring is full this
// is the k-th most recent access. h must not be empty.
func (h *accessHistory) oldest() Timestamp {
	return h.buf[h.head]
}

func (h *accessHistory) latest() Timestamp {
	return h.buf[(h.head+h.count-1)%len(h.buf)]
}

func (h *accessHistory) full() bool {
	return h.count == len(h.buf)
}

func (h *accessHistory) len() int {
	return h.count
}

// snapshot copies the retained timestamps, oldest to newest
func (h *accessHistory) snapshot() []Timestamp {
	out := make([]Timestamp, h.count)
	for i := 0; i < h.count; i++ {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	return out
}
