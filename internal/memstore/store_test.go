package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhtranq/library-circulation/internal/circulation"
)

func Test_Counter_Bounds(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.PutBook(circulation.Book{ID: "b1", Title: "t", Author: "a", TotalCopies: 1, AvailableCopies: 1})

	n, err := s.DecrementAvailable(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = s.DecrementAvailable(ctx, "b1")
	assert.ErrorIs(t, err, circulation.ErrOutOfStock)

	n, err = s.IncrementAvailable(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.IncrementAvailable(ctx, "b1")
	assert.ErrorIs(t, err, circulation.ErrOverCapacity)

	b, err := s.GetBook(ctx, "b1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, b.AvailableCopies, 0)
	assert.LessOrEqual(t, b.AvailableCopies, b.TotalCopies)
}

func Test_Counter_UnknownBook(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.DecrementAvailable(ctx, "ghost")
	assert.ErrorIs(t, err, circulation.ErrBookNotFound)
	_, err = s.IncrementAvailable(ctx, "ghost")
	assert.ErrorIs(t, err, circulation.ErrBookNotFound)
}
