package conflict

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campushub/internal/domain"
	"campushub/internal/registration/store"
	"campushub/internal/venue"
	"campushub/pkg/requestcontext"
)

type detectorFixture struct {
	events   *store.MemoryEventStore
	regs     *store.MemoryRegistrationStore
	detector *Detector
	now      time.Time
}

func newDetectorFixture(t *testing.T) *detectorFixture {
	t.Helper()
	events := store.NewMemoryEventStore()
	regs := store.NewMemoryRegistrationStore(events)
	return &detectorFixture{
		events:   events,
		regs:     regs,
		detector: NewDetector(events, regs, venue.NewDistanceModel()),
		now:      time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
}

func (f *detectorFixture) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), f.now)
}

func (f *detectorFixture) addEvent(t *testing.T, event domain.Event) domain.Event {
	t.Helper()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = domain.EventPublished
	}
	if event.Capacity == 0 {
		event.Capacity = 100
	}
	require.NoError(t, f.events.Create(context.Background(), event))
	return event
}

func (f *detectorFixture) register(t *testing.T, userID uuid.UUID, event domain.Event) {
	t.Helper()
	_, err := f.regs.Create(context.Background(), domain.Registration{
		ID:      uuid.New(),
		UserID:  userID,
		EventID: event.ID,
		Status:  domain.StatusRegistered,
	})
	require.NoError(t, err)
}

func (f *detectorFixture) at(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func TestDetectorDetect(t *testing.T) {
	t.Run("no registrations means no conflict", func(t *testing.T) {
		f := newDetectorFixture(t)
		candidate := f.addEvent(t, domain.Event{
			Title: "AI Summit", CategoryID: uuid.New(), Venue: "Tech Park",
			StartTime: f.at(10, 0), EndTime: f.at(12, 0),
		})

		result, err := f.detector.Detect(f.ctx(), uuid.New(), candidate)

		require.NoError(t, err)
		assert.False(t, result.HasConflict)
		assert.Empty(t, result.ConflictingEvents)
	})

	t.Run("overlapping event at another venue conflicts", func(t *testing.T) {
		f := newDetectorFixture(t)
		userID := uuid.New()
		held := f.addEvent(t, domain.Event{
			Title: "Morning Workshop", CategoryID: uuid.New(),
			Venue:     "Dr. T.P. Ganesan Auditorium",
			StartTime: f.at(10, 0), EndTime: f.at(12, 0),
		})
		f.register(t, userID, held)
		candidate := f.addEvent(t, domain.Event{
			Title: "Robotics Demo", CategoryID: uuid.New(),
			Venue:     "SRM Cricket Ground",
			StartTime: f.at(11, 0), EndTime: f.at(13, 0),
		})

		result, err := f.detector.Detect(f.ctx(), userID, candidate)

		require.NoError(t, err)
		assert.True(t, result.HasConflict)
		require.Len(t, result.ConflictingEvents, 1)
		assert.Equal(t, held.ID, result.ConflictingEvents[0].Event.ID)
		assert.Greater(t, result.ConflictingEvents[0].TravelTime, time.Duration(0))
	})

	t.Run("back to back at distant venues conflicts on travel time", func(t *testing.T) {
		f := newDetectorFixture(t)
		userID := uuid.New()
		model := venue.NewDistanceModel()
		travel := model.TravelTime("Dr. T.P. Ganesan Auditorium", "SRM Cricket Ground")
		require.Greater(t, travel, time.Duration(0))

		held := f.addEvent(t, domain.Event{
			Title: "Keynote", CategoryID: uuid.New(),
			Venue:     "Dr. T.P. Ganesan Auditorium",
			StartTime: f.at(10, 0), EndTime: f.at(12, 0),
		})
		f.register(t, userID, held)

		// Starts the minute the keynote ends; the walk across campus makes
		// it unreachable.
		candidate := f.addEvent(t, domain.Event{
			Title: "Finals", CategoryID: uuid.New(),
			Venue:     "SRM Cricket Ground",
			StartTime: f.at(12, 0), EndTime: f.at(14, 0),
		})

		result, err := f.detector.Detect(f.ctx(), userID, candidate)

		require.NoError(t, err)
		assert.True(t, result.HasConflict)
	})

	t.Run("back to back at the same venue does not conflict", func(t *testing.T) {
		f := newDetectorFixture(t)
		userID := uuid.New()
		held := f.addEvent(t, domain.Event{
			Title: "Session One", CategoryID: uuid.New(), Venue: "Tech Park",
			StartTime: f.at(10, 0), EndTime: f.at(12, 0),
		})
		f.register(t, userID, held)
		candidate := f.addEvent(t, domain.Event{
			Title: "Session Two", CategoryID: uuid.New(), Venue: "Tech Park",
			StartTime: f.at(12, 0), EndTime: f.at(14, 0),
		})

		result, err := f.detector.Detect(f.ctx(), userID, candidate)

		require.NoError(t, err)
		assert.False(t, result.HasConflict)
	})

	t.Run("missing end time assumes the default duration", func(t *testing.T) {
		f := newDetectorFixture(t)
		userID := uuid.New()
		held := f.addEvent(t, domain.Event{
			Title: "Open House", CategoryID: uuid.New(), Venue: "Tech Park",
			StartTime: f.at(10, 0), // no end; occupies until 12:00
		})
		f.register(t, userID, held)
		candidate := f.addEvent(t, domain.Event{
			Title: "Lab Tour", CategoryID: uuid.New(), Venue: "Tech Park",
			StartTime: f.at(11, 30), EndTime: f.at(13, 0),
		})

		result, err := f.detector.Detect(f.ctx(), userID, candidate)

		require.NoError(t, err)
		assert.True(t, result.HasConflict)
	})

	t.Run("waitlisted registrations do not conflict", func(t *testing.T) {
		f := newDetectorFixture(t)
		userID := uuid.New()
		held := f.addEvent(t, domain.Event{
			Title: "Full Event", CategoryID: uuid.New(), Venue: "Tech Park",
			StartTime: f.at(10, 0), EndTime: f.at(12, 0),
		})
		_, err := f.regs.Create(context.Background(), domain.Registration{
			ID: uuid.New(), UserID: userID, EventID: held.ID,
			Status: domain.StatusWaitlisted,
		})
		require.NoError(t, err)
		candidate := f.addEvent(t, domain.Event{
			Title: "Other Event", CategoryID: uuid.New(), Venue: "Tech Park",
			StartTime: f.at(10, 0), EndTime: f.at(12, 0),
		})

		result, err := f.detector.Detect(f.ctx(), userID, candidate)

		require.NoError(t, err)
		assert.False(t, result.HasConflict)
	})
}

func TestDetectorAlternatives(t *testing.T) {
	t.Run("scores and caps suggestions", func(t *testing.T) {
		f := newDetectorFixture(t)
		categoryID := uuid.New()
		candidate := f.addEvent(t, domain.Event{
			Title: "Sold Out Concert", CategoryID: categoryID, Venue: "Main Campus Grounds",
			StartTime: f.at(18, 0), EndTime: f.at(21, 0),
			Price:     100, Capacity: 200,
		})

		// Same price, two days out: 40 + 30 + 20 + 10.
		closeMatch := f.addEvent(t, domain.Event{
			Title: "Encore Night", CategoryID: categoryID, Venue: "Main Campus Grounds",
			StartTime: f.at(18, 0).Add(48 * time.Hour), Price: 100, Capacity: 150,
		})
		// Three weeks out, slightly pricier: 40 + 15 + 10 + 10.
		farMatch := f.addEvent(t, domain.Event{
			Title: "Spring Fest", CategoryID: categoryID, Venue: "Football Ground",
			StartTime: f.at(18, 0).Add(21 * 24 * time.Hour), Price: 108, Capacity: 150,
		})
		// Different category never appears.
		f.addEvent(t, domain.Event{
			Title: "Chess Open", CategoryID: uuid.New(), Venue: "Mini Hall 1",
			StartTime: f.at(18, 0).Add(24 * time.Hour), Price: 100,
		})

		result, err := f.detector.Detect(f.ctx(), uuid.New(), candidate)

		require.NoError(t, err)
		require.Len(t, result.SuggestedAlternatives, 2)
		assert.Equal(t, closeMatch.ID, result.SuggestedAlternatives[0].Event.ID)
		assert.Equal(t, 100, result.SuggestedAlternatives[0].SimilarityScore)
		assert.Equal(t, farMatch.ID, result.SuggestedAlternatives[1].Event.ID)
		assert.Equal(t, 75, result.SuggestedAlternatives[1].SimilarityScore)
	})

	t.Run("keeps at most five", func(t *testing.T) {
		f := newDetectorFixture(t)
		categoryID := uuid.New()
		candidate := f.addEvent(t, domain.Event{
			Title: "Popular Talk", CategoryID: categoryID, Venue: "Tech Park",
			StartTime: f.at(10, 0), EndTime: f.at(12, 0),
		})
		for i := 0; i < 8; i++ {
			f.addEvent(t, domain.Event{
				Title: "Session", CategoryID: categoryID, Venue: "Tech Park",
				StartTime: f.at(10, 0).Add(time.Duration(i+1) * 24 * time.Hour),
			})
		}

		result, err := f.detector.Detect(f.ctx(), uuid.New(), candidate)

		require.NoError(t, err)
		assert.Len(t, result.SuggestedAlternatives, 5)
	})

	t.Run("conflicting events are not suggested", func(t *testing.T) {
		f := newDetectorFixture(t)
		userID := uuid.New()
		categoryID := uuid.New()
		held := f.addEvent(t, domain.Event{
			Title: "Held Event", CategoryID: categoryID, Venue: "Tech Park",
			StartTime: f.at(10, 0), EndTime: f.at(12, 0),
		})
		f.register(t, userID, held)
		candidate := f.addEvent(t, domain.Event{
			Title: "Candidate", CategoryID: categoryID, Venue: "Tech Park",
			StartTime: f.at(11, 0), EndTime: f.at(13, 0),
		})

		result, err := f.detector.Detect(f.ctx(), userID, candidate)

		require.NoError(t, err)
		require.True(t, result.HasConflict)
		for _, alt := range result.SuggestedAlternatives {
			assert.NotEqual(t, held.ID, alt.Event.ID)
			assert.NotEqual(t, candidate.ID, alt.Event.ID)
		}
	})
}
