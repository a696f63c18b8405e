package gff

// Gendered language identifiers. GFF localized strings key their entries by
// a combined id computed as language*2 + gender; the NDUGFF text form names
// these pairs symbolically (ENGLISH, ENGLISH_F, FRENCH, ...).

// Base language ids as used by the game's dialog.tlk tables.
const (
	LangEnglish uint32 = 0
	LangFrench  uint32 = 1
	LangGerman  uint32 = 2
	LangItalian uint32 = 3
	LangSpanish uint32 = 4
	LangPolish  uint32 = 5
)

// languageNames maps combined gendered ids to their NDUGFF names, in id order.
var languageNames = []string{
	"ENGLISH",
	"ENGLISH_F",
	"FRENCH",
	"FRENCH_F",
	"GERMAN",
	"GERMAN_F",
	"ITALIAN",
	"ITALIAN_F",
	"SPANISH",
	"SPANISH_F",
	"POLISH",
	"POLISH_F",
}

// GenderedID combines a base language id and a gender flag into the id
// stored in binary CExoLocString entries.
func GenderedID(language, gender uint32) uint32 {
	return language*2 + gender
}

// SplitGenderedID splits a combined id back into (language, gender).
func SplitGenderedID(id uint32) (language, gender uint32) {
	return id / 2, id % 2
}

// LanguageName returns the NDUGFF name for a combined gendered id.
func LanguageName(id uint32) (string, bool) {
	if int(id) >= len(languageNames) {
		return "", false
	}
	return languageNames[id], true
}

// LanguageID returns the combined gendered id for an NDUGFF language name.
func LanguageID(name string) (uint32, bool) {
	for id, n := range languageNames {
		if n == name {
			return uint32(id), true
		}
	}
	return 0, false
}
