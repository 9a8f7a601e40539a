package storage

import (
	"sync"

	"github.com/google/btree"
	"go.uber.org/zap"
)

// LRUKReplacer implements the LRU-K replacement policy.
//
// A frame's backward k-distance is the time elapsed since its k-th most
// recent access; frames with fewer than k recorded accesses have an infinite
// distance. Evict picks the evictable frame with the largest distance, and
// among infinite-distance frames the one whose oldest access is earliest.
//
// Evictable frames are kept in a B-tree ordered by
// (infinite first, oldest retained timestamp, frame id), so the victim is
// always the minimum. For a full history the oldest retained timestamp is the
// k-th most recent one, which makes a smaller key a larger k-distance.
type LRUKReplacer struct {
	numFrames uint32
	k         int
	now       Timestamp
	frames    map[FrameID]*frameRecord
	evictable *btree.BTreeG[evictKey]
	metrics   *Metrics
	logger    *zap.Logger
	mutex     sync.Mutex
}

// frameRecord is the replacer's bookkeeping for one frame
type frameRecord struct {
	frameID   FrameID
	history   *accessHistory
	evictable bool
}

// evictKey orders evictable frames by eviction preference
type evictKey struct {
	infinite bool
	oldest   Timestamp
	frameID  FrameID
}

func evictKeyLess(a, b evictKey) bool {
	if a.infinite != b.infinite {
		return a.infinite
	}
	if a.oldest != b.oldest {
		return a.oldest < b.oldest
	}
	return a.frameID < b.frameID
}

func (r *frameRecord) key() evictKey {
	return evictKey{
		infinite: !r.history.full(),
		oldest:   r.history.oldest(),
		frameID:  r.frameID,
	}
}

// NewLRUKReplacer creates a replacer tracking frames [0, numFrames).
// It panics with ErrCodeInvalidArgument if k < 1.
func NewLRUKReplacer(numFrames uint32, k int, opts ...Option) *LRUKReplacer {
	if k < 1 {
		panic(ErrInvalidArgument("NewLRUKReplacer", "k must be at least 1"))
	}
	o := buildOptions(opts)
	return &LRUKReplacer{
		numFrames: numFrames,
		k:         k,
		frames:    make(map[FrameID]*frameRecord),
		evictable: btree.NewG[evictKey](8, evictKeyLess),
		metrics:   o.metrics,
		logger:    o.logger,
	}
}

// GetK returns the history depth
func (r *LRUKReplacer) GetK() int {
	return r.k
}

// GetNumFrames returns the number of frames the replacer can track
func (r *LRUKReplacer) GetNumFrames() uint32 {
	return r.numFrames
}

func (r *LRUKReplacer) checkFrame(op string, frameID FrameID) {
	if uint32(frameID) >= r.numFrames {
		panic(ErrFrameOutOfRange(op, frameID, r.numFrames))
	}
}

// RecordAccess stamps frameID with the next logical timestamp.
// Unknown frames are created non-evictable.
func (r *LRUKReplacer) RecordAccess(frameID FrameID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.checkFrame("RecordAccess", frameID)

	r.now++
	rec, exists := r.frames[frameID]
	if !exists {
		rec = &frameRecord{frameID: frameID, history: newAccessHistory(r.k)}
		r.frames[frameID] = rec
	}

	// The eviction key changes with the history, so re-index evictable frames
	if rec.evictable {
		r.evictable.Delete(rec.key())
	}
	rec.history.push(r.now)
	if rec.evictable {
		r.evictable.ReplaceOrInsert(rec.key())
	}

	r.metrics.RecordReplacerAccess()
}

// SetEvictable marks whether frameID may be chosen by Evict.
// Unknown frames are ignored.
func (r *LRUKReplacer) SetEvictable(frameID FrameID, evictable bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.checkFrame("SetEvictable", frameID)

	rec, exists := r.frames[frameID]
	if !exists || rec.evictable == evictable {
		return
	}

	rec.evictable = evictable
	if evictable {
		r.evictable.ReplaceOrInsert(rec.key())
	} else {
		r.evictable.Delete(rec.key())
	}
}

// Evict removes and returns the evictable frame with the largest backward
// k-distance. Returns false if no frame is evictable.
func (r *LRUKReplacer) Evict() (FrameID, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	victim, ok := r.evictable.DeleteMin()
	if !ok {
		return 0, false
	}
	delete(r.frames, victim.frameID)

	r.metrics.RecordReplacerEviction()
	r.logger.Debug("evicted frame",
		zap.Uint32("frame_id", uint32(victim.frameID)),
		zap.Bool("infinite_distance", victim.infinite),
		zap.Uint64("oldest_access", uint64(victim.oldest)),
	)

	return victim.frameID, true
}

// Remove discards all history for frameID. Unknown frames are ignored.
// Removing a frame that is not evictable is a caller bug and panics with
// ErrCodeFrameNotEvictable.
func (r *LRUKReplacer) Remove(frameID FrameID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.checkFrame("Remove", frameID)

	rec, exists := r.frames[frameID]
	if !exists {
		return
	}
	if !rec.evictable {
		panic(ErrFrameNotEvictable("Remove", frameID))
	}

	r.evictable.Delete(rec.key())
	delete(r.frames, frameID)
	r.metrics.RecordReplacerRemoval()
}

// Size returns the number of evictable frames
func (r *LRUKReplacer) Size() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.evictable.Len()
}

// History returns a copy of the retained access timestamps of frameID,
// oldest first, or nil if the frame is unknown.
func (r *LRUKReplacer) History(frameID FrameID) []Timestamp {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	rec, exists := r.frames[frameID]
	if !exists {
		return nil
	}
	return rec.history.snapshot()
}

// BackwardKDistance reports the current backward k-distance of frameID.
// infinite is true when fewer than k accesses are recorded; ok is false for
// unknown frames.
func (r *LRUKReplacer) BackwardKDistance(frameID FrameID) (distance uint64, infinite bool, ok bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	rec, exists := r.frames[frameID]
	if !exists {
		return 0, false, false
	}
	if !rec.history.full() {
		return 0, true, true
	}
	return uint64(r.now - rec.history.oldest()), false, true
}

// IsEvictable reports whether frameID is tracked and evictable
func (r *LRUKReplacer) IsEvictable(frameID FrameID) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	rec, exists := r.frames[frameID]
	return exists && rec.evictable
}
