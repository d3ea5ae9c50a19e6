package config

import "errors"

// Configuration errors.
var (
	// ErrSettingNotFound indicates a key with no explicit value and no
	// registered default.
	ErrSettingNotFound = errors.New("no such setting")

	// ErrSectionNotFound indicates an unknown section name.
	ErrSectionNotFound = errors.New("no such section")

	// ErrWrongType indicates a setting value of an unexpected type.
	ErrWrongType = errors.New("setting has wrong type")

	// ErrNoPath indicates a store with no backing file.
	ErrNoPath = errors.New("store has no backing file")
)
