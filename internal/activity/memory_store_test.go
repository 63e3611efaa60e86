package activity_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emissiontracker/emissiontracker/internal/activity"
	"github.com/emissiontracker/emissiontracker/internal/emission"
)

func carRequest(title string, date time.Time, total float64) *activity.CreateRequest {
	s := emission.NewCarState()
	s.TotalEmissions = total
	return activity.CarCreateRequest(activity.Meta{Title: title, Date: date}, s)
}

func TestInMemoryStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	store := activity.NewInMemoryStore()

	id, err := store.Create(ctx, carRequest("Drive", tripDate, 2.5))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	r, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, r.ID)
	assert.Equal(t, "Drive", r.Title)
	assert.Equal(t, 2.5, r.TotalEmissions)
	assert.Equal(t, activity.LocalOwner, r.CreatedBy)
	assert.NotEmpty(t, r.CreatedAt)
	assert.Empty(t, r.UpdatedAt)
}

func TestInMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := activity.NewInMemoryStore()

	id, err := store.Create(ctx, carRequest("Drive", tripDate, 1))
	require.NoError(t, err)

	r, err := store.Get(ctx, id)
	require.NoError(t, err)
	*r.Persons = 9
	r.Title = "changed"

	again, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Drive", again.Title)
	assert.Equal(t, 1, *again.Persons)
}

func TestInMemoryStore_CreateValidation(t *testing.T) {
	store := activity.NewInMemoryStore()

	req := carRequest("", tripDate, 1)
	req.Date = "not a date"

	_, err := store.Create(context.Background(), req)

	var apiErr *activity.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, []activity.FieldError{
		{InstancePath: "", Message: "must have required property 'title'"},
		{InstancePath: "/date", Message: `must match format "date-time"`},
	}, apiErr.Errors)
	assert.Equal(t, 0, store.Len())
}

func TestInMemoryStore_Update(t *testing.T) {
	ctx := context.Background()
	store := activity.NewInMemoryStore()

	id, err := store.Create(ctx, carRequest("Drive", tripDate, 1))
	require.NoError(t, err)
	created, err := store.Get(ctx, id)
	require.NoError(t, err)

	upd := &activity.UpdateRequest{ID: id, CreateRequest: *carRequest("Longer drive", tripDate, 4)}
	require.NoError(t, store.Update(ctx, upd))

	r, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Longer drive", r.Title)
	assert.Equal(t, 4.0, r.TotalEmissions)
	assert.Equal(t, created.CreatedAt, r.CreatedAt)
	assert.NotEmpty(t, r.UpdatedAt)
}

func TestInMemoryStore_UpdateErrors(t *testing.T) {
	ctx := context.Background()
	store := activity.NewInMemoryStore()

	err := store.Update(ctx, &activity.UpdateRequest{CreateRequest: *carRequest("x", tripDate, 1)})
	assert.ErrorIs(t, err, activity.ErrMissingID)

	err = store.Update(ctx, &activity.UpdateRequest{ID: "missing", CreateRequest: *carRequest("x", tripDate, 1)})
	assert.ErrorIs(t, err, activity.ErrNotFound)
}

func TestInMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := activity.NewInMemoryStore()

	id, err := store.Create(ctx, carRequest("Drive", tripDate, 1))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))
	assert.ErrorIs(t, store.Delete(ctx, id), activity.ErrNotFound)

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, activity.ErrNotFound)
}

func TestInMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	store := activity.NewInMemoryStore()

	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	for _, c := range []struct {
		title string
		date  time.Time
	}{{"jan", jan}, {"mar", mar}, {"feb", feb}} {
		_, err := store.Create(ctx, carRequest(c.title, c.date, 1))
		require.NoError(t, err)
	}

	titles := func(items []activity.ListItem) []string {
		var out []string
		for _, it := range items {
			out = append(out, it.Title)
		}
		return out
	}

	t.Run("newest first", func(t *testing.T) {
		items, err := store.List(ctx, activity.OverviewListOptions())
		require.NoError(t, err)
		assert.Equal(t, []string{"mar", "feb", "jan"}, titles(items))
	})

	t.Run("oldest first", func(t *testing.T) {
		opts := activity.OverviewListOptions()
		opts.SortDirection = activity.SortAsc
		items, err := store.List(ctx, opts)
		require.NoError(t, err)
		assert.Equal(t, []string{"jan", "feb", "mar"}, titles(items))
	})

	t.Run("creation order without sort key", func(t *testing.T) {
		items, err := store.List(ctx, activity.ListOptions{Title: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"jan", "mar", "feb"}, titles(items))
	})

	t.Run("date after", func(t *testing.T) {
		opts := activity.OverviewListOptions()
		opts.DateAfter = feb
		items, err := store.List(ctx, opts)
		require.NoError(t, err)
		assert.Equal(t, []string{"mar", "feb"}, titles(items))
	})

	t.Run("projection", func(t *testing.T) {
		items, err := store.List(ctx, activity.ListOptions{TotalEmissions: true})
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.NotEmpty(t, items[0].ID)
		assert.Empty(t, items[0].Title)
		assert.Empty(t, items[0].Date)
		assert.Equal(t, 1.0, items[0].TotalEmissions)
	})
}
