package progress

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/painting-generator/internal/events"
)

func scenario(titleID uuid.UUID, ideas []uuid.UUID) []events.Event {
	return []events.Event{
		events.Connected{Message: "SSE connection established"},
		events.GenerationStarted{TitleID: titleID, Quantity: 3},
		events.IdeaProgress{TitleID: titleID, Current: 1, Total: 3},
		events.IdeaCreated{TitleID: titleID, IdeaID: ideas[0], IdeaIndex: 0, Summary: "first"},
		events.IdeaProgress{TitleID: titleID, Current: 2, Total: 3},
		events.IdeaCreated{TitleID: titleID, IdeaID: ideas[1], IdeaIndex: 1, Summary: "second"},
		events.IdeaProgress{TitleID: titleID, Current: 3, Total: 3},
		events.IdeaCreated{TitleID: titleID, IdeaID: ideas[2], IdeaIndex: 2, Summary: "third"},
		events.IdeasComplete{TitleID: titleID},
		events.ImageProcessingStarted{TitleID: titleID, IdeaID: ideas[0], IdeaIndex: 0},
		events.ImageProcessingStarted{TitleID: titleID, IdeaID: ideas[1], IdeaIndex: 1},
		events.ImageProcessingStarted{TitleID: titleID, IdeaID: ideas[2], IdeaIndex: 2},
		events.ImageCompleted{TitleID: titleID, IdeaID: ideas[2], IdeaIndex: 2, ImageURL: "/uploads/c.png"},
		events.ImageFailed{TitleID: titleID, IdeaID: ideas[1], IdeaIndex: 1, Error: "rate limited"},
		events.ImageCompleted{TitleID: titleID, IdeaID: ideas[0], IdeaIndex: 0, ImageURL: "/uploads/a.png"},
		events.GenerationComplete{TitleID: titleID},
	}
}

func applyAll(t *testing.T, v *View, evs []events.Event) {
	t.Helper()
	for _, e := range evs {
		require.NoError(t, v.Apply(e))
	}
}

func newIDs() []uuid.UUID {
	return []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
}

func TestView_FullScenario(t *testing.T) {
	titleID := uuid.New()
	ideas := newIDs()
	v := NewView()
	applyAll(t, v, scenario(titleID, ideas))

	assert.True(t, v.Online())
	g, ok := v.Generation(titleID)
	require.True(t, ok)

	assert.Equal(t, PhaseComplete, g.Phase)
	assert.Equal(t, 1.0, g.IdeaFraction())
	assert.Equal(t, 1.0, g.OverallFraction())
	assert.Equal(t, 2, g.Count(SlotCompleted))
	assert.Equal(t, 1, g.Count(SlotFailed))

	assert.Equal(t, "first", g.Slots[0].Summary)
	assert.Equal(t, "/uploads/a.png", g.Slots[0].ImageURL)
	assert.Equal(t, "rate limited", g.Slots[1].Error)
	assert.Equal(t, "/uploads/c.png", g.Slots[2].ImageURL)

	idx, ok := g.IndexOf(ideas[2])
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 0, v.Ignored())
}

func TestView_ApplyingEachEventTwiceIsIdempotent(t *testing.T) {
	titleID := uuid.New()
	ideas := newIDs()
	evs := scenario(titleID, ideas)

	once := NewView()
	twice := NewView()
	for _, e := range evs {
		require.NoError(t, once.Apply(e))
		require.NoError(t, twice.Apply(e))
		require.NoError(t, twice.Apply(e))

		g1, _ := once.Generation(titleID)
		g2, _ := twice.Generation(titleID)
		assert.Equal(t, g1, g2, "diverged after %s", e.Type())
	}
}

func TestView_StaleEventsDoNotRegressSlots(t *testing.T) {
	titleID := uuid.New()
	ideas := newIDs()
	v := NewView()
	applyAll(t, v, scenario(titleID, ideas))

	applyAll(t, v, []events.Event{
		events.ImageProcessingStarted{TitleID: titleID, IdeaID: ideas[0], IdeaIndex: 0},
		events.IdeaCreated{TitleID: titleID, IdeaID: ideas[0], IdeaIndex: 0, Summary: "late"},
		events.IdeaProgress{TitleID: titleID, Current: 1, Total: 3},
		events.ImageFailed{TitleID: titleID, IdeaID: ideas[0], IdeaIndex: 0, Error: "late failure"},
	})

	g, _ := v.Generation(titleID)
	assert.Equal(t, SlotCompleted, g.Slots[0].Status)
	assert.Equal(t, "first", g.Slots[0].Summary)
	assert.Empty(t, g.Slots[0].Error)
	assert.Equal(t, 3, g.IdeaCurrent)
}

func TestView_GenerationStartedAfterCompletionStartsFresh(t *testing.T) {
	titleID := uuid.New()
	v := NewView()
	applyAll(t, v, scenario(titleID, newIDs()))

	require.NoError(t, v.Apply(events.GenerationStarted{TitleID: titleID, Quantity: 2}))

	g, _ := v.Generation(titleID)
	assert.Equal(t, PhaseIdeas, g.Phase)
	assert.Len(t, g.Slots, 2)
	assert.Equal(t, 0.0, g.OverallFraction())
}

func TestView_CompletionOutOfIndexOrder(t *testing.T) {
	titleID := uuid.New()
	ideas := newIDs()
	v := NewView()
	applyAll(t, v, []events.Event{
		events.GenerationStarted{TitleID: titleID, Quantity: 3},
		events.ImageCompleted{TitleID: titleID, IdeaID: ideas[2], IdeaIndex: 2, ImageURL: "/c.png"},
	})

	g, _ := v.Generation(titleID)
	assert.InDelta(t, 1.0/3.0, g.OverallFraction(), 1e-9)
	assert.Equal(t, SlotCompleted, g.Slots[2].Status)
	assert.Equal(t, SlotWaiting, g.Slots[0].Status)
}

func TestView_IgnoresUnknownTitlesAndIndexes(t *testing.T) {
	titleID := uuid.New()
	v := NewView()
	applyAll(t, v, []events.Event{
		events.ImageCompleted{TitleID: uuid.New(), IdeaIndex: 0},
		events.GenerationStarted{TitleID: titleID, Quantity: 1},
		events.ImageFailed{TitleID: titleID, IdeaIndex: 7, Error: "x"},
		events.IdeaCreated{TitleID: titleID, IdeaIndex: -1},
	})

	assert.Equal(t, 3, v.Ignored())
	assert.Len(t, v.Generations(), 1)
}

func TestView_GenerationError(t *testing.T) {
	titleID := uuid.New()
	v := NewView()
	applyAll(t, v, []events.Event{
		events.GenerationStarted{TitleID: titleID, Quantity: 3},
		events.IdeaProgress{TitleID: titleID, Current: 1, Total: 3},
		events.GenerationError{TitleID: titleID, Error: "idea stage failed at idea 2: boom"},
		events.GenerationComplete{TitleID: titleID},
	})

	g, _ := v.Generation(titleID)
	assert.Equal(t, PhaseError, g.Phase)
	assert.Equal(t, "idea stage failed at idea 2: boom", g.Error)
	assert.InDelta(t, 1.0/3.0, g.IdeaFraction(), 1e-9)
}
