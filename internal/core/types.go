// Package core provides shared types and the error taxonomy for the crate
// exploration service.
package core

import "fmt"

// CrateKey identifies one published crate version. Keys are compared by exact
// string equality; no normalization is applied.
type CrateKey struct {
	Name    string
	Version string
}

// String returns the "<name>-<version>" form used as the tarball root prefix.
func (k CrateKey) String() string {
	return fmt.Sprintf("%s-%s", k.Name, k.Version)
}

// RootPrefix returns the top-level directory crates.io places inside the
// tarball, including the trailing slash.
func (k CrateKey) RootPrefix() string {
	return k.String() + "/"
}

// EntryKind distinguishes files from directories in listings.
type EntryKind string

const (
	KindFile EntryKind = "file"
	KindDir  EntryKind = "dir"
)

// DirEntry is one immediate child of a listed directory.
type DirEntry struct {
	Name string    `json:"name"`
	Kind EntryKind `json:"kind"`
}

// FileLineRange selects an inclusive 1-based line window. Zero means
// unbounded on that side.
type FileLineRange struct {
	Start int
	End   int
}

// ItemType enumerates the declaration categories the item indexer emits.
type ItemType string

const (
	ItemAll              ItemType = "all"
	ItemStruct           ItemType = "struct"
	ItemEnum             ItemType = "enum"
	ItemTrait            ItemType = "trait"
	ItemImplType         ItemType = "impl-type"
	ItemImplTraitForType ItemType = "impl-trait-for-type"
	ItemMacro            ItemType = "macro"
	ItemAttributeMacro   ItemType = "attribute-macro"
	ItemFunction         ItemType = "function"
	ItemTypeAlias        ItemType = "type-alias"
)

// ParseItemType maps a query-string value to an ItemType. Empty input means
// all categories.
func ParseItemType(s string) (ItemType, error) {
	switch ItemType(s) {
	case "", ItemAll:
		return ItemAll, nil
	case ItemStruct, ItemEnum, ItemTrait, ItemImplType, ItemImplTraitForType,
		ItemMacro, ItemAttributeMacro, ItemFunction, ItemTypeAlias:
		return ItemType(s), nil
	}
	return "", fmt.Errorf("unknown item type: %q", s)
}

// Item is one declaration discovered by the structural indexer.
type Item struct {
	Name         string   `json:"name"`
	Type         ItemType `json:"type"`
	File         string   `json:"file"`
	LineStart    int      `json:"line_start"`
	LineEnd      int      `json:"line_end"`
	ReceiverType string   `json:"receiver_type,omitempty"`
	TraitName    string   `json:"trait_name,omitempty"`
}

// ItemQuery selects declarations from the structural index.
type ItemQuery struct {
	Type  ItemType
	Query string
	// Path restricts results to files under this crate-relative prefix.
	Path string
}

// SearchMode selects how a line query is interpreted.
type SearchMode string

const (
	ModePlainText SearchMode = "plain-text"
	ModeRegex     SearchMode = "regex"
)

// ParseSearchMode maps a query-string value to a SearchMode. Empty input
// defaults to plain text.
func ParseSearchMode(s string) (SearchMode, error) {
	switch SearchMode(s) {
	case "", ModePlainText:
		return ModePlainText, nil
	case ModeRegex:
		return ModeRegex, nil
	}
	return "", fmt.Errorf("unknown search mode: %q", s)
}

// LineQuery describes a full-text search over a snapshot.
type LineQuery struct {
	Query         string
	Mode          SearchMode
	CaseSensitive bool
	WholeWord     bool
	// MaxResults caps the total number of matches; zero means unbounded.
	MaxResults int
	// FileExt is a comma-separated list of extensions, e.g. "rs,toml".
	FileExt string
	// Path restricts the search to files under this crate-relative prefix.
	Path string
}

// Line is one full-text search match. Columns are 1-based; ColumnEnd points
// one past the last matched byte, mirroring the half-open match range.
type Line struct {
	Line        string `json:"line"`
	File        string `json:"file"`
	LineNumber  int    `json:"line_number"`
	ColumnStart int    `json:"column_start"`
	ColumnEnd   int    `json:"column_end"`
}
