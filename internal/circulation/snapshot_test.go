package circulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_SnapshotBook(t *testing.T) {
	b := Book{ID: "b1", Code: "NV-001", Title: "Nhà Giả Kim", Author: "Paulo Coelho"}

	snap, err := SnapshotBook(b)
	require.NoError(t, err)
	assert.Equal(t, BookSnapshot{Title: "Nhà Giả Kim", Author: "Paulo Coelho", Code: "NV-001"}, snap)

	// the snapshot is a value copy: editing the live record later must not
	// change what was frozen
	b.Title = "renamed"
	assert.Equal(t, "Nhà Giả Kim", snap.Title)
}

func Test_SnapshotBook_MissingFields(t *testing.T) {
	_, err := SnapshotBook(Book{ID: "b1", Author: "someone"})
	assert.ErrorIs(t, err, ErrIncompleteSourceRecord)

	_, err = SnapshotBook(Book{ID: "b1", Title: "untitled"})
	assert.ErrorIs(t, err, ErrIncompleteSourceRecord)
}

func Test_SnapshotMember(t *testing.T) {
	m := Member{ID: "m1", Code: "TV-042", Name: "Trần Văn An", Email: "an@example.com"}

	snap, err := SnapshotMember(m)
	require.NoError(t, err)
	assert.Equal(t, MemberSnapshot{Name: "Trần Văn An", Code: "TV-042", Email: "an@example.com"}, snap)
}

func Test_SnapshotMember_MissingFields(t *testing.T) {
	_, err := SnapshotMember(Member{ID: "m1", Name: "no email"})
	assert.ErrorIs(t, err, ErrIncompleteSourceRecord)

	_, err = SnapshotMember(Member{ID: "m1", Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrIncompleteSourceRecord)
}
