package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/painting-generator/internal/events"
	"github.com/jonathan/painting-generator/internal/types"
)

// runImageStage drains the job queue keeping at most cfg.Concurrency
// provider calls in flight. A finished call frees its slot for the next
// queued idea immediately.
func (o *Orchestrator) runImageStage(ctx context.Context, j *job, refs []types.ReferenceImage) {
	defer o.wg.Done()

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for n := j.pending(); n > 0; n-- {
		g.Go(func() error {
			if item, ok := j.take(); ok {
				o.generateImage(ctx, j, item, refs)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) generateImage(ctx context.Context, j *job, item workItem, refs []types.ReferenceImage) {
	log := o.logger.With(
		zap.String("title_id", j.titleID.String()),
		zap.String("idea_id", item.idea.ID.String()),
		zap.String("painting_id", item.painting.ID.String()),
		zap.Int("idea_index", item.index))

	o.pub.Publish(j.userID, events.ImageProcessingStarted{TitleID: j.titleID, IdeaID: item.idea.ID, IdeaIndex: item.index})

	result, err := o.callImageProvider(ctx, ImageRequest{
		TitleID:    j.titleID,
		IdeaID:     item.idea.ID,
		OwnerID:    j.userID,
		Prompt:     item.idea.FullPrompt,
		References: refs,
	})
	if err != nil {
		log.Warn("image generation failed", zap.Error(err))
		o.fail(ctx, j, item, err.Error(), log)
		return
	}

	if err := o.repo.CompletePainting(ctx, item.painting.ID, result.ImageURL, result.UsedReferenceIDs); err != nil {
		log.Error("failed to record completed painting", zap.String("image_url", result.ImageURL), zap.Error(err))
		o.fail(ctx, j, item, fmt.Sprintf("failed to save painting: %v", err), log)
		return
	}

	o.pub.Publish(j.userID, events.ImageCompleted{TitleID: j.titleID, IdeaID: item.idea.ID, IdeaIndex: item.index, ImageURL: result.ImageURL})
	o.settle(j, item.index, true)
}

// callImageProvider converts a provider panic into an error so the idea still settles.
func (o *Orchestrator) callImageProvider(ctx context.Context, req ImageRequest) (result *ImageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("image provider panic: %v", r)
		}
	}()
	result, err = o.images.GenerateImage(ctx, req)
	if err == nil && result == nil {
		err = fmt.Errorf("image provider returned no result")
	}
	return result, err
}

func (o *Orchestrator) fail(ctx context.Context, j *job, item workItem, message string, log *zap.Logger) {
	if err := o.repo.FailPainting(ctx, item.painting.ID, message); err != nil {
		log.Error("failed to record failed painting", zap.Error(err))
	}
	o.pub.Publish(j.userID, events.ImageFailed{TitleID: j.titleID, IdeaID: item.idea.ID, IdeaIndex: item.index, Error: message})
	o.settle(j, item.index, false)
}

func (o *Orchestrator) settle(j *job, index int, ok bool) {
	applied, last := j.settle(index, ok)
	if !applied || !last {
		return
	}

	c := j.counters()
	o.logger.Info("generation complete",
		zap.String("title_id", j.titleID.String()),
		zap.Int("completed", c.Completed),
		zap.Int("failed", c.Failed))
	o.pub.Publish(j.userID, events.GenerationComplete{TitleID: j.titleID})
	o.remove(j)
}
