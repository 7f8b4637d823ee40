package circulation

import "fmt"

// SnapshotBook freezes the display fields of a book at borrow time.
func SnapshotBook(b Book) (BookSnapshot, error) {
	if b.Title == "" || b.Author == "" {
		return BookSnapshot{}, fmt.Errorf("book %s: %w", b.ID, ErrIncompleteSourceRecord)
	}
	return BookSnapshot{Title: b.Title, Author: b.Author, Code: b.Code}, nil
}

// SnapshotMember freezes the display fields of a member at borrow time.
// Name and email are required for notification composition later.
func SnapshotMember(m Member) (MemberSnapshot, error) {
	if m.Name == "" || m.Email == "" {
		return MemberSnapshot{}, fmt.Errorf("member %s: %w", m.ID, ErrIncompleteSourceRecord)
	}
	return MemberSnapshot{Name: m.Name, Code: m.Code, Email: m.Email}, nil
}
