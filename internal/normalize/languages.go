package normalize

// catalogLanguages is the language vocabulary the upstream catalog actually
// tags songs with. Query tokens matching one of these act as language hints
// and as removable noise when building search variants.
var catalogLanguages = []string{
	"hindi", "english", "punjabi", "tamil", "telugu", "marathi",
	"gujarati", "bengali", "kannada", "bhojpuri", "malayalam", "urdu",
	"haryanvi", "rajasthani", "odia", "assamese",
}

var catalogLanguageSet = func() map[string]bool {
	set := make(map[string]bool, len(catalogLanguages))
	for _, l := range catalogLanguages {
		set[l] = true
	}
	return set
}()

// Languages returns the known catalog languages in their stable order.
func Languages() []string {
	out := make([]string, len(catalogLanguages))
	copy(out, catalogLanguages)
	return out
}

// IsLanguage reports whether the normalized token names a catalog language.
func IsLanguage(token string) bool {
	return catalogLanguageSet[Language(token)]
}

// Language canonicalizes a language label ("Hindi ", "HINDI") to its
// lowercase form. Unknown labels pass through normalized so that new
// upstream languages still bucket consistently.
func Language(label string) string {
	return Normalize(label)
}
