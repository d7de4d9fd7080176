// Package storage defines the note file-system abstraction.
package storage

import "github.com/starford/mnemo/internal/models"

// Ext is the file extension of every note document.
const Ext = ".md"

// Provider is the interface for note file operations. Notes are addressed by
// id; the file name is the id plus Ext.
type Provider interface {
	// Read returns the raw bytes of a note. Missing notes wrap apperr.ErrNotFound.
	Read(id string) ([]byte, error)
	// Write atomically replaces the note file with content.
	Write(id string, content []byte) error
	// Exists reports whether a note file is present.
	Exists(id string) (bool, error)
	// List returns metadata for every note file in the store.
	List() ([]models.NoteMetadata, error)
	// Root returns the absolute store directory.
	Root() string
}
