// Package progress rebuilds a live generation progress view from the event stream.
//
// Every transition is idempotent and monotonic: applying an event twice, or
// receiving a stale event after a newer one, never moves a slot backwards.
package progress

import (
	"sort"

	"github.com/google/uuid"

	"github.com/jonathan/painting-generator/internal/events"
)

// SlotStatus is the observer-side state of one painting placeholder.
type SlotStatus int

const (
	SlotWaiting SlotStatus = iota
	SlotIdeaReady
	SlotProcessing
	SlotCompleted
	SlotFailed
)

func (s SlotStatus) String() string {
	switch s {
	case SlotIdeaReady:
		return "idea ready"
	case SlotProcessing:
		return "processing"
	case SlotCompleted:
		return "completed"
	case SlotFailed:
		return "failed"
	}
	return "waiting"
}

// Terminal reports whether the slot has settled.
func (s SlotStatus) Terminal() bool {
	return s == SlotCompleted || s == SlotFailed
}

// Slot is one painting placeholder.
type Slot struct {
	Index    int
	IdeaID   uuid.UUID
	Summary  string
	Status   SlotStatus
	ImageURL string
	Error    string
}

// Phase is the overall state of a generation.
type Phase int

const (
	PhaseIdeas Phase = iota
	PhaseImages
	PhaseComplete
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseImages:
		return "generating images"
	case PhaseComplete:
		return "complete"
	case PhaseError:
		return "error"
	}
	return "generating ideas"
}

// Generation is the reconstructed state of one title's job.
type Generation struct {
	TitleID     uuid.UUID
	Total       int
	IdeaCurrent int
	Phase       Phase
	Error       string
	Slots       []Slot

	ideaIndex map[uuid.UUID]int
}

// IdeaFraction is the idea stage progress in [0,1].
func (g *Generation) IdeaFraction() float64 {
	if g.Total == 0 {
		return 0
	}
	return float64(g.IdeaCurrent) / float64(g.Total)
}

// Count returns the number of slots in status s.
func (g *Generation) Count(s SlotStatus) int {
	n := 0
	for _, slot := range g.Slots {
		if slot.Status == s {
			n++
		}
	}
	return n
}

// OverallFraction is (completed+failed)/total.
func (g *Generation) OverallFraction() float64 {
	if g.Total == 0 {
		return 0
	}
	return float64(g.Count(SlotCompleted)+g.Count(SlotFailed)) / float64(g.Total)
}

// IndexOf returns the slot index recorded for ideaID.
func (g *Generation) IndexOf(ideaID uuid.UUID) (int, bool) {
	i, ok := g.ideaIndex[ideaID]
	return i, ok
}

func (g *Generation) slot(index int) *Slot {
	if index < 0 || index >= len(g.Slots) {
		return nil
	}
	return &g.Slots[index]
}

// advance moves the slot at index forward to status and reports whether it
// changed. Terminal slots never change.
func (g *Generation) advance(index int, ideaID uuid.UUID, status SlotStatus) (*Slot, bool) {
	s := g.slot(index)
	if s == nil {
		return nil, false
	}
	if ideaID != uuid.Nil {
		s.IdeaID = ideaID
		g.ideaIndex[ideaID] = index
	}
	if s.Status.Terminal() || status <= s.Status {
		return s, false
	}
	s.Status = status
	return s, true
}

// View holds every generation an observer has seen. It is not safe for
// concurrent use.
type View struct {
	online      bool
	generations map[uuid.UUID]*Generation
	ignored     int
}

// NewView returns an empty view.
func NewView() *View {
	return &View{generations: make(map[uuid.UUID]*Generation)}
}

// Apply folds one event into the view.
func (v *View) Apply(e events.Event) error {
	return events.Dispatch(e, v)
}

// Online reports whether the stream's connected event has been seen.
func (v *View) Online() bool {
	return v.online
}

// Generation returns the state for titleID.
func (v *View) Generation(titleID uuid.UUID) (*Generation, bool) {
	g, ok := v.generations[titleID]
	return g, ok
}

// Generations returns all known generations ordered by title id.
func (v *View) Generations() []*Generation {
	out := make([]*Generation, 0, len(v.generations))
	for _, g := range v.generations {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TitleID.String() < out[j].TitleID.String()
	})
	return out
}

// Ignored counts events that referenced a generation or slot the view never saw.
func (v *View) Ignored() int {
	return v.ignored
}

func (v *View) lookup(titleID uuid.UUID) *Generation {
	g, ok := v.generations[titleID]
	if !ok {
		v.ignored++
		return nil
	}
	return g
}

func (v *View) Connected(events.Connected) {
	v.online = true
}

func (v *View) GenerationStarted(e events.GenerationStarted) {
	if g, ok := v.generations[e.TitleID]; ok && g.Phase != PhaseComplete && g.Phase != PhaseError && g.Total == e.Quantity {
		return
	}
	g := &Generation{
		TitleID:   e.TitleID,
		Total:     e.Quantity,
		Slots:     make([]Slot, e.Quantity),
		ideaIndex: make(map[uuid.UUID]int, e.Quantity),
	}
	for i := range g.Slots {
		g.Slots[i].Index = i
	}
	v.generations[e.TitleID] = g
}

func (v *View) IdeaProgress(e events.IdeaProgress) {
	g := v.lookup(e.TitleID)
	if g == nil {
		return
	}
	if e.Current > g.IdeaCurrent && e.Current <= g.Total {
		g.IdeaCurrent = e.Current
	}
}

func (v *View) IdeaCreated(e events.IdeaCreated) {
	g := v.lookup(e.TitleID)
	if g == nil {
		return
	}
	s, _ := g.advance(e.IdeaIndex, e.IdeaID, SlotIdeaReady)
	if s == nil {
		v.ignored++
		return
	}
	if s.Summary == "" {
		s.Summary = e.Summary
	}
}

func (v *View) IdeasComplete(e events.IdeasComplete) {
	g := v.lookup(e.TitleID)
	if g == nil {
		return
	}
	g.IdeaCurrent = g.Total
	if g.Phase == PhaseIdeas {
		g.Phase = PhaseImages
	}
}

func (v *View) ImageProcessingStarted(e events.ImageProcessingStarted) {
	g := v.lookup(e.TitleID)
	if g == nil {
		return
	}
	if s, _ := g.advance(e.IdeaIndex, e.IdeaID, SlotProcessing); s == nil {
		v.ignored++
		return
	}
	if g.Phase == PhaseIdeas {
		g.Phase = PhaseImages
	}
}

func (v *View) ImageCompleted(e events.ImageCompleted) {
	g := v.lookup(e.TitleID)
	if g == nil {
		return
	}
	s, changed := g.advance(e.IdeaIndex, e.IdeaID, SlotCompleted)
	if s == nil {
		v.ignored++
		return
	}
	if changed {
		s.ImageURL = e.ImageURL
	}
}

func (v *View) ImageFailed(e events.ImageFailed) {
	g := v.lookup(e.TitleID)
	if g == nil {
		return
	}
	s, changed := g.advance(e.IdeaIndex, e.IdeaID, SlotFailed)
	if s == nil {
		v.ignored++
		return
	}
	if changed {
		s.Error = e.Error
	}
}

func (v *View) GenerationComplete(e events.GenerationComplete) {
	if g := v.lookup(e.TitleID); g != nil && g.Phase != PhaseError {
		g.Phase = PhaseComplete
	}
}

func (v *View) GenerationError(e events.GenerationError) {
	if g := v.lookup(e.TitleID); g != nil {
		g.Phase = PhaseError
		g.Error = e.Error
	}
}
