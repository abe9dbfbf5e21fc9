package model

import "github.com/rotisserie/eris"

// Error taxonomy shared by the loaders, matcher, search engine and predictor.
// Callers distinguish the classes with errors.Is.
var (
	// ErrUnsupportedCrop is returned for a crop key outside the catalog.
	ErrUnsupportedCrop = eris.New("unsupported crop")

	// ErrFileNotFound is returned when a required input file is absent.
	ErrFileNotFound = eris.New("file not found")

	// ErrNotFound is returned when a valid query matches no rows.
	ErrNotFound = eris.New("not found")

	// ErrNotLoaded is returned when an operation runs before its inputs were loaded or trained.
	ErrNotLoaded = eris.New("not loaded: call load first")
)
