package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/relief-intake/internal/geo"
	"github.com/jonathan/relief-intake/internal/types"
)

func setupSQLite(t *testing.T) *SQLite {
	t.Helper()
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "relief.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(ctx, nil))
	return s
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func sampleInput() *ResourceInput {
	cat := types.CategoryWater
	sub := types.SubcategoryBottled
	user := types.UserTypeNGO
	loc := geo.NewPoint(61.4980, 23.7603)
	dist := 0.1
	return &ResourceInput{
		Category:        &cat,
		Subcategory:     &sub,
		Name:            "bottled water crate",
		Quantity:        intPtr(12),
		LocationGeoJSON: &loc,
		LocationText:    strPtr("Tampere central hospital"),
		DistanceKM:      &dist,
		PhoneNumber:     strPtr("+358 40 1234567"),
		SourceText:      "We have 12 bottled water crates near Tampere central hospital",
		UserType:        &user,
	}
}

func TestSQLite_CreateAndGet(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	created, err := s.CreateResource(ctx, sampleInput())
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.True(t, created.CreatedAt.After(before))

	got, err := s.GetResource(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	require.NotNil(t, got.Category)
	assert.Equal(t, types.CategoryWater, *got.Category)
	require.NotNil(t, got.Subcategory)
	assert.Equal(t, types.SubcategoryBottled, *got.Subcategory)
	require.NotNil(t, got.Quantity)
	assert.Equal(t, 12, *got.Quantity)
	require.NotNil(t, got.LocationGeoJSON)
	assert.InDelta(t, 61.4980, got.LocationGeoJSON.Lat(), 1e-9)
	assert.InDelta(t, 23.7603, got.LocationGeoJSON.Lon(), 1e-9)
	require.NotNil(t, got.UserType)
	assert.Equal(t, types.UserTypeNGO, *got.UserType)
	assert.Nil(t, got.Email)
	assert.Nil(t, got.NumAvailablePeople)
	assert.False(t, got.Flagged)
	assert.Nil(t, got.AbuseReason)
}

func TestSQLite_CreateResources(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	second := sampleInput()
	second.Name = "blanket"
	created, err := s.CreateResources(ctx, []*ResourceInput{sampleInput(), second})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "bottled water crate", created[0].Name)
	assert.Equal(t, "blanket", created[1].Name)
	assert.Less(t, created[0].ID, created[1].ID)

	all, err := s.ListResources(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_CreateResources_RollsBackOnFailure(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `CREATE TRIGGER reject_rotten BEFORE INSERT ON resources
		WHEN NEW.name = 'rotten fish'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	bad := sampleInput()
	bad.Name = "rotten fish"
	_, err = s.CreateResources(ctx, []*ResourceInput{sampleInput(), bad})
	require.Error(t, err)

	all, err := s.ListResources(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "a failed batch must not leave earlier rows behind")

	created, err := s.CreateResources(ctx, []*ResourceInput{sampleInput()})
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestSQLite_NullableColumns(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	created, err := s.CreateResource(ctx, &ResourceInput{Name: "mystery crate", SourceText: "manual entry"})
	require.NoError(t, err)
	assert.Nil(t, created.Category)
	assert.Nil(t, created.Subcategory)
	assert.Nil(t, created.LocationGeoJSON)
	assert.Nil(t, created.DistanceKM)
	assert.Nil(t, created.UserType)
}

func TestSQLite_ListOrderedByID(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	empty, err := s.ListResources(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, name := range []string{"tent", "generator", "boat"} {
		in := sampleInput()
		in.Name = name
		_, err := s.CreateResource(ctx, in)
		require.NoError(t, err)
	}

	list, err := s.ListResources(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "tent", list[0].Name)
	assert.Equal(t, "boat", list[2].Name)
	assert.Less(t, list[0].ID, list[1].ID)
	assert.Less(t, list[1].ID, list[2].ID)
}

func TestSQLite_UpdateResource(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	created, err := s.CreateResource(ctx, sampleInput())
	require.NoError(t, err)

	flagged := true
	updated, err := s.UpdateResource(ctx, created.ID, &ResourceUpdate{
		Name:        strPtr("water crate"),
		Quantity:    intPtr(3),
		Flagged:     &flagged,
		AbuseReason: strPtr("duplicate report"),
	})
	require.NoError(t, err)
	assert.Equal(t, "water crate", updated.Name)
	assert.Equal(t, 3, *updated.Quantity)
	assert.True(t, updated.Flagged)
	assert.Equal(t, "duplicate report", *updated.AbuseReason)
	// Untouched columns and created_at are preserved
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, created.LocationText, updated.LocationText)

	cat := types.CategoryFood
	unflag := false
	updated, err = s.UpdateResource(ctx, created.ID, &ResourceUpdate{
		Category:         &cat,
		ClearSubcategory: true,
		Flagged:          &unflag,
		ClearAbuseReason: true,
	})
	require.NoError(t, err)
	assert.Equal(t, types.CategoryFood, *updated.Category)
	assert.Nil(t, updated.Subcategory)
	assert.False(t, updated.Flagged)
	assert.Nil(t, updated.AbuseReason)

	same, err := s.UpdateResource(ctx, created.ID, &ResourceUpdate{})
	require.NoError(t, err)
	assert.Equal(t, updated, same)
}

func TestSQLite_NotFound(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	_, err := s.GetResource(ctx, 404)
	assert.ErrorIs(t, err, ErrResourceNotFound)

	_, err = s.UpdateResource(ctx, 404, &ResourceUpdate{Name: strPtr("x")})
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestSQLite_Settings(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	defer s.Close()

	// Before migrate the tables do not exist
	_, err = s.GetSettings(ctx)
	assert.Error(t, err)

	seed := &types.Settings{ActiveProvider: "gemini", FallbackProvider: "local", GeminiModel: "gemini-2.5-flash", MatchStrategy: types.MatchProvider}
	require.NoError(t, s.Migrate(ctx, seed))

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gemini", got.ActiveProvider)
	assert.Equal(t, "local", got.FallbackProvider)
	assert.Equal(t, "gemini-2.5-flash", got.GeminiModel)
	assert.Equal(t, types.MatchProvider, got.MatchStrategy)
	assert.False(t, got.UpdatedAt.IsZero())

	// A second migrate keeps the existing row
	require.NoError(t, s.Migrate(ctx, DefaultSettings()))
	got, err = s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gemini", got.ActiveProvider)

	require.NoError(t, s.SetActiveProvider(ctx, "local"))
	got, err = s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "local", got.ActiveProvider)
	assert.Equal(t, "local", got.FallbackProvider)

	got.OpenAIModel = "gpt-4o"
	got.MatchStrategy = "bogus"
	updated, err := s.UpdateSettings(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", updated.OpenAIModel)
	assert.Equal(t, types.MatchHeuristic, updated.MatchStrategy)
}

func TestOpen_PicksBackend(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, "")
	assert.Error(t, err)

	store, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "a.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, store)
	require.NoError(t, store.Close())

	store, err = Open(ctx, filepath.Join(t.TempDir(), "b.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, store)
	require.NoError(t, store.Close())
}

func TestResourceUpdate_SetClause(t *testing.T) {
	cat := types.CategoryFuel
	upd := &ResourceUpdate{Category: &cat, ClearSubcategory: true, Quantity: intPtr(4)}
	set, args := upd.setClause(func(n int) string { return "$" + string(rune('0'+n)) })
	assert.Equal(t, "category = $1, subcategory = $2, quantity = $3", set)
	assert.Equal(t, []any{"FUEL", nil, 4}, args)

	assert.True(t, (&ResourceUpdate{}).Empty())
	assert.False(t, upd.Empty())
}

func TestInputFromCandidate(t *testing.T) {
	loc := geo.NewPoint(61.5, 23.76)
	reason := "implausible"
	c := &types.ResourceCandidate{
		Category:        types.CategoryEquipment,
		Name:            "excavator",
		Quantity:        intPtr(40),
		LocationGeoJSON: &loc,
		Flagged:         true,
		AbuseReason:     &reason,
	}
	user := types.UserTypeCivilian

	in := InputFromCandidate(c, "I have 40 excavators", &user)
	assert.Equal(t, types.CategoryEquipment, *in.Category)
	assert.Equal(t, "I have 40 excavators", in.SourceText)
	assert.True(t, in.Flagged)
	assert.Equal(t, &reason, in.AbuseReason)
	assert.Equal(t, &user, in.UserType)
}
