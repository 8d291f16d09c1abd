package repositories_test

import (
	"context"
	"testing"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecrementAvailableNeverGoesNegative(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewBookRepository(db)
	ctx := context.Background()
	book := testutil.CreateBook(t, db, "Dune", 1)

	ok, err := repo.DecrementAvailable(ctx, book.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DecrementAvailable(ctx, book.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "second decrement must not match")

	assert.Equal(t, 0, testutil.ReloadBook(t, db, book.ID).AvailableCopies)
}

func TestDecrementAvailableUnknownBook(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewBookRepository(db)

	ok, err := repo.DecrementAvailable(context.Background(), 999, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := repo.Exists(context.Background(), 999)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIncrementAvailableSaturatesAtTotal(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewBookRepository(db)
	ctx := context.Background()
	book := testutil.CreateBook(t, db, "Emma", 2)

	_, err := repo.IncrementAvailable(ctx, book.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, testutil.ReloadBook(t, db, book.ID).AvailableCopies)

	_, err = repo.DecrementAvailable(ctx, book.ID, 2)
	require.NoError(t, err)
	_, err = repo.IncrementAvailable(ctx, book.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.ReloadBook(t, db, book.ID).AvailableCopies)
}

func TestAddCopiesGrowsTotalAndAvailable(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewBookRepository(db)
	book := testutil.CreateBook(t, db, "Ulysses", 1)

	_, err := repo.AddCopies(context.Background(), book.ID, 3)
	require.NoError(t, err)

	got := testutil.ReloadBook(t, db, book.ID)
	assert.Equal(t, 4, got.TotalCopies)
	assert.Equal(t, 4, got.AvailableCopies)
}

func TestPendingRequestKeyIsUnique(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewRequestRepository(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "reader")
	book := testutil.CreateBook(t, db, "Beloved", 1)

	key := repositories.PendingRequestKey(user.ID, book.ID)
	first := &models.BookRequest{UserID: user.ID, BookID: book.ID, Status: "pending", PendingKey: &key, RequestDate: testutil.T0}
	require.NoError(t, repo.Create(ctx, first))

	second := &models.BookRequest{UserID: user.ID, BookID: book.ID, Status: "pending", PendingKey: &key, RequestDate: testutil.T0}
	err := repo.Create(ctx, second)
	require.Error(t, err)
	assert.True(t, repositories.IsDuplicate(err))

	ok, err := repo.Resolve(ctx, first.ID, "rejected", 1, "", testutil.T0)
	require.NoError(t, err)
	assert.True(t, ok)

	third := &models.BookRequest{UserID: user.ID, BookID: book.ID, Status: "pending", PendingKey: &key, RequestDate: testutil.T0}
	assert.NoError(t, repo.Create(ctx, third), "key is released once resolved")
}
