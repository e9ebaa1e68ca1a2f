package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narrative-timeline/backend/pkg/models"
)

func ptr[T any](v T) *T { return &v }

// runStoreSuite exercises the TimelineStore contract against a migrated store.
func runStoreSuite(t *testing.T, store TimelineStore) {
	ctx := context.Background()

	t.Run("Create and Get", func(t *testing.T) {
		tl := models.NewTimeline("fall of the berlin wall")
		require.NoError(t, store.CreateTimeline(ctx, tl))
		assert.NotEmpty(t, tl.ID)

		got, err := store.GetTimeline(ctx, tl.ID)
		require.NoError(t, err)
		assert.Equal(t, tl.ID, got.ID)
		assert.Equal(t, "fall of the berlin wall", got.Topic)
		assert.Equal(t, "fall of the berlin wall", got.Query)
		assert.Equal(t, models.StatusProcessing, got.Status)
		assert.Equal(t, "0/0", got.Progress.String())
		assert.Nil(t, got.DateRangeStart)
		assert.NotNil(t, got.Events)
		assert.Empty(t, got.Events)

		st, err := store.GetTimelineStatus(ctx, tl.ID)
		require.NoError(t, err)
		assert.Equal(t, &models.TimelineStatus{ID: tl.ID, Status: models.StatusProcessing, Progress: models.Progress{}}, st)
	})

	t.Run("Unknown id", func(t *testing.T) {
		_, err := store.GetTimeline(ctx, "does-not-exist")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = store.GetTimelineStatus(ctx, "does-not-exist")
		assert.ErrorIs(t, err, ErrNotFound)

		err = store.InTx(ctx, func(tx TimelineTx) error {
			_, err := tx.LoadTimeline(ctx, "does-not-exist")
			return err
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Eager graph", func(t *testing.T) {
		tl := models.NewTimeline("apollo 11")
		require.NoError(t, store.CreateTimeline(ctx, tl))

		start := time.Date(1969, 7, 16, 13, 32, 0, 0, time.UTC)
		end := time.Date(1969, 7, 24, 16, 50, 0, 0, time.UTC)
		published := time.Date(1969, 7, 21, 0, 0, 0, 0, time.UTC)

		var branchID string
		err := store.InTx(ctx, func(tx TimelineTx) error {
			loaded, err := tx.LoadTimeline(ctx, tl.ID)
			if err != nil {
				return err
			}
			loaded.Topic = "Apollo 11 Moon Landing"
			loaded.DateRangeStart = &start
			loaded.DateRangeEnd = &end
			loaded.Progress = models.Progress{Completed: 0, Total: 2}
			if err := tx.UpdateTimeline(ctx, loaded); err != nil {
				return err
			}

			for i, title := range []string{"Launch", "Landing"} {
				ev := &models.Event{
					TimelineID: tl.ID,
					Title:      title,
					EventDate:  start.Add(time.Duration(i) * 96 * time.Hour),
					Priority:   models.PriorityHigh,
					Order:      i,
				}
				if i == 1 {
					ev.Description = ptr("Eagle has landed")
				}
				if err := tx.CreateEvent(ctx, ev); err != nil {
					return err
				}
				if i == 0 {
					continue
				}

				br := &models.Branch{
					EventID:          ev.ID,
					Narrative:        "Official account",
					CredibilityScore: 0.9,
					Evidence:         ptr("telemetry"),
					SourceCount:      2,
				}
				if err := tx.CreateBranch(ctx, br); err != nil {
					return err
				}
				branchID = br.ID

				if err := tx.CreateSource(ctx, &models.Source{
					EventID:          ev.ID,
					URL:              "https://nasa.gov/a11",
					Outlet:           "NASA",
					CredibilityScore: 0.95,
					PublishDate:      &published,
					Claims:           []string{"landed", "walked"},
					Position:         0,
				}); err != nil {
					return err
				}
				if err := tx.CreateSource(ctx, &models.Source{
					EventID:          ev.ID,
					BranchID:         &br.ID,
					URL:              "https://example.com/wire",
					Outlet:           models.DefaultOutlet,
					CredibilityScore: models.DefaultCredibility,
					Position:         1,
				}); err != nil {
					return err
				}
			}
			loaded.Progress = models.Progress{Completed: 2, Total: 2}
			return tx.UpdateTimeline(ctx, loaded)
		})
		require.NoError(t, err)

		got, err := store.GetTimeline(ctx, tl.ID)
		require.NoError(t, err)
		assert.Equal(t, "Apollo 11 Moon Landing", got.Topic)
		assert.Equal(t, "apollo 11", got.Query)
		assert.Equal(t, "2/2", got.Progress.String())
		require.NotNil(t, got.DateRangeStart)
		require.NotNil(t, got.DateRangeEnd)
		assert.True(t, start.Equal(*got.DateRangeStart))
		assert.True(t, end.Equal(*got.DateRangeEnd))

		require.Len(t, got.Events, 2)
		assert.Equal(t, "Launch", got.Events[0].Title)
		assert.Equal(t, 0, got.Events[0].Order)
		assert.Nil(t, got.Events[0].Description)
		assert.Empty(t, got.Events[0].Sources)
		assert.Empty(t, got.Events[0].Branches)

		landing := got.Events[1]
		assert.Equal(t, 1, landing.Order)
		assert.Equal(t, models.PriorityHigh, landing.Priority)
		require.NotNil(t, landing.Description)
		assert.Equal(t, "Eagle has landed", *landing.Description)

		require.Len(t, landing.Sources, 2)
		assert.Equal(t, "NASA", landing.Sources[0].Outlet)
		assert.Equal(t, []string{"landed", "walked"}, landing.Sources[0].Claims)
		require.NotNil(t, landing.Sources[0].PublishDate)
		assert.True(t, published.Equal(*landing.Sources[0].PublishDate))
		assert.Nil(t, landing.Sources[0].BranchID)
		assert.Equal(t, []string{}, landing.Sources[1].Claims)
		assert.Nil(t, landing.Sources[1].PublishDate)

		require.Len(t, landing.Branches, 1)
		br := landing.Branches[0]
		assert.Equal(t, branchID, br.ID)
		assert.Equal(t, "Official account", br.Narrative)
		assert.InDelta(t, 0.9, br.CredibilityScore, 1e-9)
		assert.Equal(t, 2, br.SourceCount)
		require.Len(t, br.Sources, 1)
		assert.Equal(t, "https://example.com/wire", br.Sources[0].URL)
	})

	t.Run("Rollback on error", func(t *testing.T) {
		tl := models.NewTimeline("rollback")
		require.NoError(t, store.CreateTimeline(ctx, tl))

		boom := errors.New("boom")
		err := store.InTx(ctx, func(tx TimelineTx) error {
			if err := tx.CreateEvent(ctx, &models.Event{
				TimelineID: tl.ID, Title: "x", EventDate: time.Now().UTC(), Order: 0,
			}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.GetTimeline(ctx, tl.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Events)
	})

	t.Run("Concurrent readers during write", func(t *testing.T) {
		tl := models.NewTimeline("concurrency")
		require.NoError(t, store.CreateTimeline(ctx, tl))

		var wg sync.WaitGroup
		stop := make(chan struct{})
		errs := make(chan error, 4)
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				last := 0
				for {
					select {
					case <-stop:
						return
					default:
					}
					st, err := store.GetTimelineStatus(ctx, tl.ID)
					if err != nil {
						errs <- err
						return
					}
					if st.Progress.Completed < last {
						errs <- errors.New("progress went backwards")
						return
					}
					last = st.Progress.Completed
				}
			}()
		}

		for i := range 5 {
			err := store.InTx(ctx, func(tx TimelineTx) error {
				loaded, err := tx.LoadTimeline(ctx, tl.ID)
				if err != nil {
					return err
				}
				loaded.Progress = models.Progress{Completed: i + 1, Total: 5}
				return tx.UpdateTimeline(ctx, loaded)
			})
			require.NoError(t, err)
		}
		close(stop)
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		st, err := store.GetTimelineStatus(ctx, tl.ID)
		require.NoError(t, err)
		assert.Equal(t, "5/5", st.Progress.String())
	})

	t.Run("Full read consistent during write", func(t *testing.T) {
		const total = 8
		tl := models.NewTimeline("consistent reads")
		require.NoError(t, store.CreateTimeline(ctx, tl))

		var wg sync.WaitGroup
		stop := make(chan struct{})
		errs := make(chan error, 2)
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					got, err := store.GetTimeline(ctx, tl.ID)
					if err != nil {
						errs <- err
						return
					}
					if len(got.Events) != got.Progress.Completed {
						errs <- fmt.Errorf("read %d events with progress %s", len(got.Events), got.Progress)
						return
					}
					for _, ev := range got.Events {
						if len(ev.Sources) != 1 || len(ev.Branches) != 1 {
							errs <- fmt.Errorf("event %d read with %d sources and %d branches", ev.Order, len(ev.Sources), len(ev.Branches))
							return
						}
					}
				}
			}()
		}

		base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := range total {
			err := store.InTx(ctx, func(tx TimelineTx) error {
				loaded, err := tx.LoadTimeline(ctx, tl.ID)
				if err != nil {
					return err
				}
				ev := &models.Event{
					TimelineID: tl.ID, Title: fmt.Sprintf("event %d", i),
					EventDate: base.AddDate(0, 0, i), Order: i, Priority: models.PriorityMedium,
				}
				if err := tx.CreateEvent(ctx, ev); err != nil {
					return err
				}
				if err := tx.CreateSource(ctx, &models.Source{EventID: ev.ID, Outlet: "Wire"}); err != nil {
					return err
				}
				if err := tx.CreateBranch(ctx, &models.Branch{EventID: ev.ID, Narrative: "account", CredibilityScore: 0.5}); err != nil {
					return err
				}
				loaded.Progress = models.Progress{Completed: i + 1, Total: total}
				return tx.UpdateTimeline(ctx, loaded)
			})
			require.NoError(t, err)
		}
		close(stop)
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		got, err := store.GetTimeline(ctx, tl.ID)
		require.NoError(t, err)
		assert.Len(t, got.Events, total)
		assert.Equal(t, "8/8", got.Progress.String())
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}
