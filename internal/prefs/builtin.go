package prefs

import "github.com/testride/testride/internal/config"

// builtinPages creates the stock pages and seeds their sections'
// defaults. Explicit user values in the store are never overwritten.
func builtinPages(store *config.Store) []Page {
	return []Page{
		savingPage(store),
		importsPage(store),
		colorsPage(store),
	}
}

func savingPage(store *config.Store) Page {
	section := store.AddSection("saving")
	section.SetDefaults(map[string]any{
		"default file format":  "txt",
		"txt number of spaces": 4,
		"line separator":       "native",
		"reformat":             false,
	})
	return Page{
		Name:     "Saving",
		Location: []string{"Saving"},
		Section:  section,
		Fields: []Field{
			{Key: "default file format", Label: "Default file format", Kind: KindChoice, Choices: []string{"txt", "tsv", "html", "robot"}},
			{Key: "txt number of spaces", Label: "Separating spaces", Kind: KindInt},
			{Key: "line separator", Label: "Line separator", Kind: KindChoice, Choices: []string{"native", "CRLF", "LF"}},
			{Key: "reformat", Label: "Reformat on save", Kind: KindBool},
		},
	}
}

func importsPage(store *config.Store) Page {
	section := store.AddSection("imports")
	section.SetDefaults(map[string]any{
		"auto imports":            []any{},
		"pythonpath":              []any{},
		"library xml directories": []any{},
	})
	return Page{
		Name:     "Imports",
		Location: []string{"Imports"},
		Section:  section,
		Fields: []Field{
			{Key: "auto imports", Label: "Automatically imported libraries", Kind: KindList},
			{Key: "pythonpath", Label: "Extra search paths", Kind: KindList},
			{Key: "library xml directories", Label: "Library spec directories", Kind: KindList},
		},
	}
}

func colorsPage(store *config.Store) Page {
	section := store.AddSection("colors")
	section.SetDefaults(map[string]any{
		"keyword":        "#0080C0",
		"variable":       "#008080",
		"comment":        "#B22222",
		"error":          "#FF0000",
		"gherkin prefix": "#000000",
	})
	return Page{
		Name:     "Colors",
		Location: []string{"Text Editor", "Colors"},
		Section:  section,
		Fields: []Field{
			{Key: "keyword", Label: "Keyword", Kind: KindColor},
			{Key: "variable", Label: "Variable", Kind: KindColor},
			{Key: "comment", Label: "Comment", Kind: KindColor},
			{Key: "error", Label: "Error", Kind: KindColor},
			{Key: "gherkin prefix", Label: "Gherkin prefix", Kind: KindColor},
		},
	}
}
