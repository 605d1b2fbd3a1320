package state

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Preet3627/Saras-AI/pkg/detection"
)

// DefaultWakeWord is the wake phrase until an operator changes it.
const DefaultWakeWord = "hey saras"

// historySize bounds the transition log.
const historySize = 100

var (
	ErrEmptyWakeWord = errors.New("state: wake word is empty")
	ErrEmptyQuestion = errors.New("state: response question is empty")
)

// Pair is one custom question and answer.
type Pair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// State is shared by every worker and request handler. All access goes
// through one mutex, and no method holds it while calling out.
type State struct {
	mu sync.Mutex

	detections   []detection.Detection
	detectionsAt time.Time
	frameWidth   int
	published    bool

	mode        Mode
	transitions []Transition
	seq         uint64
	listeners   []func(Transition)

	seen    map[string]time.Time
	seenTTL time.Duration

	running bool
	done    chan struct{}

	responses map[string]string
	wakeWord  string
}

// New returns a running state with defaults: mode Off, no detections,
// the default wake word.
func New() *State {
	return &State{
		mode:      Off,
		seen:      make(map[string]time.Time),
		running:   true,
		done:      make(chan struct{}),
		responses: make(map[string]string),
		wakeWord:  DefaultWakeWord,
	}
}

// --- detections ---

// PublishDetections replaces the detection list wholesale. width is the
// pixel width of the frame the boxes refer to; 0 means unknown.
func (s *State) PublishDetections(dets []detection.Detection, width int) {
	cp := append([]detection.Detection(nil), dets...)
	s.mu.Lock()
	s.detections = cp
	s.detectionsAt = time.Now()
	s.frameWidth = width
	s.published = true
	s.mu.Unlock()
}

// Detections returns a copy of the latest list and when it was published.
// ok is false until the first publish.
func (s *State) Detections() (dets []detection.Detection, at time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]detection.Detection(nil), s.detections...), s.detectionsAt, s.published
}

// FrameWidth is the width of the frame behind the latest detections,
// or 0 when it was not reported.
func (s *State) FrameWidth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameWidth
}

// --- mode ---

// Mode returns the active mode.
func (s *State) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode records an operator mode change. Invalid modes are rejected
// and leave the state unchanged.
func (s *State) SetMode(m Mode, source string) (Transition, error) {
	if !m.Valid() {
		return Transition{}, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	return s.transition(m, source, ""), nil
}

// ForceMode is the system override path: safety retreat and shutdown.
func (s *State) ForceMode(m Mode, source, reason string) Transition {
	if !m.Valid() {
		m = Off
	}
	return s.transition(m, source, reason)
}

func (s *State) transition(to Mode, source, reason string) Transition {
	s.mu.Lock()
	s.seq++
	t := Transition{
		ID:     uuid.New(),
		Seq:    s.seq,
		From:   s.mode,
		To:     to,
		Source: source,
		Reason: reason,
		At:     time.Now(),
	}
	s.mode = to
	s.transitions = append(s.transitions, t)
	if len(s.transitions) > historySize {
		s.transitions = s.transitions[len(s.transitions)-historySize:]
	}
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(t)
	}
	return t
}

// Transitions returns up to n of the most recent transitions, oldest first.
// n <= 0 returns all retained transitions.
func (s *State) Transitions(n int) []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if n > 0 && n < len(s.transitions) {
		start = len(s.transitions) - n
	}
	return append([]Transition(nil), s.transitions[start:]...)
}

// OnTransition registers fn to be called after every mode transition.
// Callbacks run on the caller's goroutine without the lock held.
func (s *State) OnTransition(fn func(Transition)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// --- seen entities ---

// SetSeenTTL makes greeted entities expire after d. Zero keeps them until cleared.
func (s *State) SetSeenTTL(d time.Duration) {
	s.mu.Lock()
	s.seenTTL = d
	s.mu.Unlock()
}

// MarkSeen adds key and reports whether it was new. With a TTL, an entry
// older than the TTL counts as new again.
func (s *State) MarkSeen(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(now)
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = now
	return true
}

// Seen reports whether key is currently in the set.
func (s *State) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(time.Now())
	_, ok := s.seen[key]
	return ok
}

// ClearSeen empties the seen set.
func (s *State) ClearSeen() {
	s.mu.Lock()
	s.seen = make(map[string]time.Time)
	s.mu.Unlock()
}

// SeenCount returns the number of live entries.
func (s *State) SeenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(time.Now())
	return len(s.seen)
}

func (s *State) evictLocked(now time.Time) {
	if s.seenTTL <= 0 {
		return
	}
	for k, at := range s.seen {
		if now.Sub(at) > s.seenTTL {
			delete(s.seen, k)
		}
	}
}

// --- lifecycle ---

// Running reports whether workers should keep looping.
func (s *State) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Done is closed when Stop is called.
func (s *State) Done() <-chan struct{} {
	return s.done
}

// Stop clears the running flag. Safe to call more than once.
func (s *State) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.running = false
		close(s.done)
	}
}

// --- custom responses ---

func normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// ReplaceResponses swaps the whole question/answer table. Questions are
// matched case-insensitively; a repeated question keeps its last answer.
// Any empty question rejects the whole table and leaves the old one in place.
func (s *State) ReplaceResponses(pairs []Pair) error {
	table := make(map[string]string, len(pairs))
	for _, p := range pairs {
		q := normalize(p.Question)
		if q == "" {
			return ErrEmptyQuestion
		}
		table[q] = p.Answer
	}

	s.mu.Lock()
	s.responses = table
	s.mu.Unlock()
	return nil
}

// Responses returns the table sorted by question.
func (s *State) Responses() []Pair {
	s.mu.Lock()
	pairs := make([]Pair, 0, len(s.responses))
	for q, a := range s.responses {
		pairs = append(pairs, Pair{Question: q, Answer: a})
	}
	s.mu.Unlock()

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Question < pairs[j].Question })
	return pairs
}

// LookupResponse finds the answer for an utterance. An exact question match
// wins; otherwise the longest question contained in the utterance is used.
func (s *State) LookupResponse(utterance string) (string, bool) {
	u := normalize(utterance)
	if u == "" {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.responses[u]; ok {
		return a, true
	}
	best, answer := "", ""
	for q, a := range s.responses {
		if strings.Contains(u, q) && (len(q) > len(best) || (len(q) == len(best) && q < best)) {
			best, answer = q, a
		}
	}
	return answer, best != ""
}

// --- wake word ---

// SetWakeWord trims and lower-cases w. Empty input is rejected.
func (s *State) SetWakeWord(w string) (string, error) {
	w = normalize(w)
	if w == "" {
		return "", ErrEmptyWakeWord
	}
	s.mu.Lock()
	s.wakeWord = w
	s.mu.Unlock()
	return w, nil
}

// WakeWord returns the current wake phrase.
func (s *State) WakeWord() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wakeWord
}

// --- snapshot ---

// Snapshot is a consistent copy of the state for status reporting.
type Snapshot struct {
	Mode           Mode                  `json:"mode"`
	Detections     []detection.Detection `json:"detections"`
	DetectionsAt   time.Time             `json:"detections_at"`
	SeenEntities   int                   `json:"seen_entities"`
	Running        bool                  `json:"running"`
	WakeWord       string                `json:"wake_word"`
	Responses      int                   `json:"custom_responses"`
	LastTransition *Transition           `json:"last_transition,omitempty"`
}

// Snapshot copies the state under one lock acquisition.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(time.Now())

	snap := Snapshot{
		Mode:         s.mode,
		Detections:   append([]detection.Detection{}, s.detections...),
		DetectionsAt: s.detectionsAt,
		SeenEntities: len(s.seen),
		Running:      s.running,
		WakeWord:     s.wakeWord,
		Responses:    len(s.responses),
	}
	if n := len(s.transitions); n > 0 {
		t := s.transitions[n-1]
		snap.LastTransition = &t
	}
	return snap
}
