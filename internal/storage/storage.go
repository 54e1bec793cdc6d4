package storage

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrNotFound is returned when a locator has no stored object.
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidKey is returned for keys that sanitize to nothing.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Store persists opaque file bytes and returns a locator for them.
type Store interface {
	Store(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Load(ctx context.Context, locator string) ([]byte, error)
	// Delete removes the object behind locator. Missing objects are not an error.
	Delete(ctx context.Context, locator string) error
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeKey strips characters that are unsafe in file names and object keys.
func SanitizeKey(key string) string {
	key = unsafeKeyChars.ReplaceAllString(key, "")
	return strings.TrimLeft(key, ".")
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// CleanPart removes every non-alphanumeric character.
func CleanPart(value string) string {
	return nonAlnum.ReplaceAllString(value, "")
}

// DocumentKey builds "<prefix><paper>_<First>[_<Last>]_<txn>.pdf" from cleaned parts.
func DocumentKey(prefix, paperID, firstName, lastName, transactionNo string) string {
	return documentStem(prefix, paperID, firstName, lastName, transactionNo) + ".pdf"
}

// OwnedDocumentKey is DocumentKey with the cleaned owner id appended, so two
// records sharing paper, name and transaction never share an object.
func OwnedDocumentKey(prefix, paperID, firstName, lastName, transactionNo, ownerID string) string {
	stem := documentStem(prefix, paperID, firstName, lastName, transactionNo)
	if owner := CleanPart(ownerID); owner != "" {
		stem += "_" + owner
	}
	return stem + ".pdf"
}

func documentStem(prefix, paperID, firstName, lastName, transactionNo string) string {
	name := CleanPart(firstName)
	if last := CleanPart(lastName); last != "" {
		name += "_" + last
	}
	return prefix + CleanPart(paperID) + "_" + name + "_" + CleanPart(transactionNo)
}
