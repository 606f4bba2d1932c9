package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/painting-generator/internal/events"
	"github.com/jonathan/painting-generator/internal/types"
)

type fakeRepo struct {
	mu        sync.Mutex
	titles    map[uuid.UUID]*types.Title
	ideas     []types.Idea
	paintings map[uuid.UUID]*types.Painting
	refs      []types.ReferenceImage
	clock     time.Time

	completeErr error
	listErr     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		titles:    make(map[uuid.UUID]*types.Title),
		paintings: make(map[uuid.UUID]*types.Painting),
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *fakeRepo) addTitle(userID uuid.UUID) *types.Title {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &types.Title{ID: uuid.New(), UserID: userID, Title: "Harbor at dusk", Instructions: "muted palette"}
	r.titles[t.ID] = t
	return t
}

func (r *fakeRepo) seedIdea(titleID uuid.UUID, summary string) types.Idea {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = r.clock.Add(time.Second)
	idea := types.Idea{ID: uuid.New(), TitleID: titleID, Summary: summary, FullPrompt: summary, CreatedAt: r.clock}
	r.ideas = append(r.ideas, idea)
	return idea
}

func (r *fakeRepo) GetTitle(_ context.Context, id uuid.UUID) (*types.Title, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.titles[id], nil
}

func (r *fakeRepo) ListIdeas(_ context.Context, titleID uuid.UUID) ([]types.Idea, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []types.Idea
	for i := len(r.ideas) - 1; i >= 0; i-- {
		if r.ideas[i].TitleID == titleID {
			out = append(out, r.ideas[i])
		}
	}
	return out, nil
}

func (r *fakeRepo) ListGenerationReferences(_ context.Context, titleID, userID uuid.UUID) ([]types.ReferenceImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.ReferenceImage
	for _, ref := range r.refs {
		if (ref.TitleID != nil && *ref.TitleID == titleID) || (ref.UserID == userID && ref.IsGlobal) {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateIdea(_ context.Context, idea *types.Idea) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = r.clock.Add(time.Second)
	idea.ID = uuid.New()
	idea.CreatedAt = r.clock
	r.ideas = append(r.ideas, *idea)
	return nil
}

func (r *fakeRepo) CreatePainting(_ context.Context, p *types.Painting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = r.clock
	cp := *p
	r.paintings[p.ID] = &cp
	return nil
}

func (r *fakeRepo) CompletePainting(_ context.Context, id uuid.UUID, imageURL string, used []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completeErr != nil {
		return r.completeErr
	}
	p, ok := r.paintings[id]
	if !ok {
		return fmt.Errorf("painting %s not found", id)
	}
	p.Status = types.PaintingCompleted
	p.ImageURL = imageURL
	p.UsedReferenceIDs = used
	return nil
}

func (r *fakeRepo) FailPainting(_ context.Context, id uuid.UUID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.paintings[id]
	if !ok {
		return fmt.Errorf("painting %s not found", id)
	}
	p.Status = types.PaintingFailed
	p.ErrorMessage = message
	return nil
}

func (r *fakeRepo) ideaCount(titleID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, idea := range r.ideas {
		if idea.TitleID == titleID {
			n++
		}
	}
	return n
}

func (r *fakeRepo) paintingsFor(titleID uuid.UUID) []types.Painting {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Painting
	for _, p := range r.paintings {
		if p.TitleID == titleID {
			out = append(out, *p)
		}
	}
	return out
}

func (r *fakeRepo) painting(ideaID uuid.UUID) types.Painting {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.paintings {
		if p.IdeaID == ideaID {
			return *p
		}
	}
	return types.Painting{}
}

// fakeIdeas returns numbered ideas and records the history each call saw.
type fakeIdeas struct {
	mu      sync.Mutex
	calls   int
	failAt  int
	history [][]string
}

func (f *fakeIdeas) GenerateIdea(_ context.Context, req IdeaRequest) (*GeneratedIdea, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	summaries := make([]string, len(req.PriorIdeas))
	for i, idea := range req.PriorIdeas {
		summaries[i] = idea.Summary
	}
	f.history = append(f.history, summaries)
	if f.failAt > 0 && f.calls == f.failAt {
		return nil, errors.New("idea provider unavailable")
	}
	return &GeneratedIdea{
		Summary:    fmt.Sprintf("idea %d", f.calls),
		FullPrompt: fmt.Sprintf("paint idea %d", f.calls),
	}, nil
}

// fakeImages answers each call through fn and tracks peak concurrency.
type fakeImages struct {
	fn func(req ImageRequest, call int) (*ImageResult, error)

	mu       sync.Mutex
	calls    int
	inFlight int
	peak     int
}

func (f *fakeImages) GenerateImage(_ context.Context, req ImageRequest) (*ImageResult, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.fn != nil {
		return f.fn(req, call)
	}
	return succeed(req), nil
}

func (f *fakeImages) peakInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func succeed(req ImageRequest) *ImageResult {
	used := make([]uuid.UUID, 0, len(req.References))
	for _, ref := range req.References {
		used = append(used, ref.ID)
	}
	return &ImageResult{ImageURL: "/uploads/" + req.IdeaID.String() + ".png", UsedReferenceIDs: used}
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
	users  []uuid.UUID
}

func (r *recorder) Publish(userID uuid.UUID, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	r.users = append(r.users, userID)
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *recorder) count(t events.Type) int {
	n := 0
	for _, e := range r.all() {
		if e.Type() == t {
			n++
		}
	}
	return n
}

func (r *recorder) indexOf(t events.Type) int {
	for i, e := range r.all() {
		if e.Type() == t {
			return i
		}
	}
	return -1
}

func (r *recorder) lastIndexOf(t events.Type) int {
	all := r.all()
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Type() == t {
			return i
		}
	}
	return -1
}
