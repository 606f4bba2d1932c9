// Package orchestrator turns a "generate N paintings" request into a sequential
// idea stage followed by a bounded-parallel image stage, reporting progress
// through typed events.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/painting-generator/internal/events"
	"github.com/jonathan/painting-generator/internal/types"
)

// Repository is the slice of the job store the orchestrator needs.
type Repository interface {
	GetTitle(ctx context.Context, id uuid.UUID) (*types.Title, error)
	// ListIdeas returns every idea of the title, newest first.
	ListIdeas(ctx context.Context, titleID uuid.UUID) ([]types.Idea, error)
	// ListGenerationReferences returns the title's references plus the user's global ones.
	ListGenerationReferences(ctx context.Context, titleID, userID uuid.UUID) ([]types.ReferenceImage, error)
	CreateIdea(ctx context.Context, idea *types.Idea) error
	CreatePainting(ctx context.Context, painting *types.Painting) error
	CompletePainting(ctx context.Context, id uuid.UUID, imageURL string, usedReferenceIDs []uuid.UUID) error
	FailPainting(ctx context.Context, id uuid.UUID, message string) error
}

// IdeaRequest is the input to one idea provider call.
type IdeaRequest struct {
	Title *types.Title
	// PriorIdeas holds every stored idea for the title followed by the ideas
	// generated so far in the current job.
	PriorIdeas []types.Idea
}

// GeneratedIdea is an idea provider result before it is persisted.
type GeneratedIdea struct {
	Summary    string
	FullPrompt string
}

// IdeaProvider produces one new idea per call.
type IdeaProvider interface {
	GenerateIdea(ctx context.Context, req IdeaRequest) (*GeneratedIdea, error)
}

// ImageRequest is the input to one image provider call.
type ImageRequest struct {
	TitleID    uuid.UUID
	IdeaID     uuid.UUID
	OwnerID    uuid.UUID
	Prompt     string
	References []types.ReferenceImage
}

// ImageResult describes a generated image.
type ImageResult struct {
	ImageURL         string
	UsedReferenceIDs []uuid.UUID
}

// ImageProvider produces one image per call.
type ImageProvider interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
}

// Publisher delivers progress events to a user's observers.
type Publisher interface {
	Publish(userID uuid.UUID, e events.Event)
}

// Config tunes the pipeline.
type Config struct {
	// Concurrency caps in-flight image provider calls per job.
	Concurrency int
	// DefaultQuantity applies when a request leaves quantity unset.
	DefaultQuantity int
	// MaxQuantity rejects larger requests. Zero means unbounded.
	MaxQuantity int
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() Config {
	return Config{
		Concurrency:     5,
		DefaultQuantity: 5,
		MaxQuantity:     20,
	}
}

// Request starts a generation.
type Request struct {
	TitleID  uuid.UUID
	UserID   uuid.UUID
	Quantity int
}

// Result is returned once the idea stage has finished.
type Result struct {
	TitleID uuid.UUID
	Ideas   []types.Idea
	// Done is closed when the image stage has settled every idea.
	Done <-chan struct{}
}

// Orchestrator owns the table of active generation jobs, at most one per title.
type Orchestrator struct {
	repo   Repository
	ideas  IdeaProvider
	images ImageProvider
	pub    Publisher
	cfg    Config
	logger *zap.Logger

	mu   sync.Mutex
	jobs map[uuid.UUID]*job
	wg   sync.WaitGroup
}

// New creates an Orchestrator.
func New(repo Repository, ideas IdeaProvider, images ImageProvider, pub Publisher, cfg Config, logger *zap.Logger) *Orchestrator {
	defaults := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.DefaultQuantity <= 0 {
		cfg.DefaultQuantity = defaults.DefaultQuantity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		repo:   repo,
		ideas:  ideas,
		images: images,
		pub:    pub,
		cfg:    cfg,
		logger: logger,
		jobs:   make(map[uuid.UUID]*job),
	}
}

// StartGeneration runs the idea stage to completion, starts the image stage
// in the background and returns the created ideas. Work continues after ctx
// is cancelled; only its values are kept.
func (o *Orchestrator) StartGeneration(ctx context.Context, req Request) (*Result, error) {
	quantity, err := o.quantity(req.Quantity)
	if err != nil {
		return nil, err
	}

	title, err := o.repo.GetTitle(ctx, req.TitleID)
	if err != nil {
		return nil, &StageError{Stage: StageContext, Err: err}
	}
	if title == nil || title.UserID != req.UserID {
		return nil, ErrTitleNotFound
	}

	var (
		prior []types.Idea
		refs  []types.ReferenceImage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		prior, err = o.repo.ListIdeas(gctx, title.ID)
		return err
	})
	g.Go(func() error {
		var err error
		refs, err = o.repo.ListGenerationReferences(gctx, title.ID, req.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, &StageError{Stage: StageContext, Err: err}
	}

	j, err := o.register(title.ID, req.UserID, quantity)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	log := o.logger.With(zap.String("title_id", title.ID.String()), zap.String("user_id", req.UserID.String()))
	log.Info("generation started", zap.Int("quantity", quantity), zap.Int("prior_ideas", len(prior)), zap.Int("references", len(refs)))

	o.pub.Publish(req.UserID, events.GenerationStarted{TitleID: title.ID, Quantity: quantity})

	created := make([]types.Idea, 0, quantity)
	for i := 0; i < quantity; i++ {
		o.pub.Publish(req.UserID, events.IdeaProgress{TitleID: title.ID, Current: i + 1, Total: quantity})

		history := make([]types.Idea, 0, len(prior)+len(created))
		history = append(history, prior...)
		history = append(history, created...)

		generated, err := o.ideas.GenerateIdea(ctx, IdeaRequest{Title: title, PriorIdeas: history})
		if err != nil {
			return nil, o.abort(j, &StageError{Stage: StageIdea, Index: i, Err: err})
		}

		idea := types.Idea{TitleID: title.ID, Summary: generated.Summary, FullPrompt: generated.FullPrompt}
		if err := o.repo.CreateIdea(ctx, &idea); err != nil {
			return nil, o.abort(j, &StageError{Stage: StageStorage, Index: i, Err: err})
		}
		painting := types.Painting{TitleID: title.ID, IdeaID: idea.ID, Status: types.PaintingPending}
		if err := o.repo.CreatePainting(ctx, &painting); err != nil {
			return nil, o.abort(j, &StageError{Stage: StageStorage, Index: i, Err: err})
		}

		created = append(created, idea)
		j.addIdea(workItem{index: i, idea: idea, painting: painting})
		o.pub.Publish(req.UserID, events.IdeaCreated{TitleID: title.ID, IdeaID: idea.ID, IdeaIndex: i, Summary: idea.Summary})
	}

	o.pub.Publish(req.UserID, events.IdeasComplete{TitleID: title.ID})

	o.wg.Add(1)
	go o.runImageStage(ctx, j, refs)

	return &Result{TitleID: title.ID, Ideas: created, Done: j.done}, nil
}

// Active reports whether a generation for titleID is in progress.
func (o *Orchestrator) Active(titleID uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.jobs[titleID]
	return ok
}

// Progress returns the counters of the active job for titleID.
func (o *Orchestrator) Progress(titleID uuid.UUID) (Counters, bool) {
	o.mu.Lock()
	j, ok := o.jobs[titleID]
	o.mu.Unlock()
	if !ok {
		return Counters{}, false
	}
	return j.counters(), true
}

// Wait blocks until every running image stage has finished or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) quantity(requested int) (int, error) {
	switch {
	case requested == 0:
		return o.cfg.DefaultQuantity, nil
	case requested < 0:
		return 0, fmt.Errorf("%w: %d", ErrInvalidQuantity, requested)
	case o.cfg.MaxQuantity > 0 && requested > o.cfg.MaxQuantity:
		return 0, fmt.Errorf("%w: %d exceeds maximum of %d", ErrInvalidQuantity, requested, o.cfg.MaxQuantity)
	}
	return requested, nil
}

// register adds a job for titleID unless one is already active.
func (o *Orchestrator) register(titleID, userID uuid.UUID, total int) (*job, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.jobs[titleID]; ok {
		return nil, ErrJobActive
	}
	j := newJob(titleID, userID, total)
	o.jobs[titleID] = j
	return j, nil
}

func (o *Orchestrator) remove(j *job) {
	o.mu.Lock()
	if o.jobs[j.titleID] == j {
		delete(o.jobs, j.titleID)
	}
	o.mu.Unlock()
	close(j.done)
}

// abort ends a job during the idea stage. Rows already written stay pending.
func (o *Orchestrator) abort(j *job, err *StageError) error {
	o.logger.Error("generation aborted",
		zap.String("title_id", j.titleID.String()),
		zap.String("stage", string(err.Stage)),
		zap.Int("ideas_generated", j.counters().IdeasGenerated),
		zap.Error(err.Err))
	o.pub.Publish(j.userID, events.GenerationError{TitleID: j.titleID, Error: err.Error()})
	o.remove(j)
	return err
}
