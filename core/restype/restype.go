// Package restype maps the numeric resource-type ids used by the KEY/BIF
// and ERF archive formats to their file extensions.
package restype

import "strings"

// Invalid is the id archives use for unset or unknown resource slots.
const Invalid uint16 = 0xFFFF

// extensions lists the resource types the toolchain handles, keyed by the
// id stored in archive key tables. The ids come from the Aurora engine and
// are shared by every archive format.
var extensions = map[uint16]string{
	1:    "bmp",
	3:    "tga",
	4:    "wav",
	6:    "plt",
	7:    "ini",
	10:   "txt",
	2002: "mdl",
	2009: "nss",
	2010: "ncs",
	2012: "are",
	2013: "set",
	2014: "ifo",
	2015: "bic",
	2016: "wok",
	2017: "2da",
	2022: "txi",
	2023: "git",
	2025: "uti",
	2027: "utc",
	2029: "dlg",
	2030: "itp",
	2032: "utt",
	2033: "dds",
	2035: "uts",
	2036: "ltr",
	2037: "gff",
	2038: "fac",
	2040: "ute",
	2042: "utd",
	2044: "utp",
	2045: "dft",
	2046: "gic",
	2047: "gui",
	2051: "utm",
	2052: "dwk",
	2053: "pwk",
	2056: "jrl",
	2058: "utw",
	2060: "ssf",
	2064: "ndb",
	2065: "ptm",
	2066: "ptt",
	2067: "bak",
	9996: "ids",
	9997: "erf",
	9998: "bif",
	9999: "key",
}

var ids = func() map[string]uint16 {
	m := make(map[string]uint16, len(extensions))
	for id, ext := range extensions {
		m[ext] = id
	}
	return m
}()

// Extension returns the file extension (without the dot) for a resource
// type id.
func Extension(id uint16) (string, bool) {
	ext, ok := extensions[id]
	return ext, ok
}

// ID returns the resource type id for a file extension, with or without a
// leading dot, case-insensitively.
func ID(ext string) (uint16, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	id, ok := ids[ext]
	return id, ok
}
