package factum

import "regexp"

// keywordRegex implements the grammar:
//
//	identifier = [A-Za-z][A-Za-z0-9_-]*
//	namespace  = identifier(.identifier)*
//	keyword    = (namespace/)?identifier
//
// This is intentionally stricter than Clojure/edn's own keyword grammar.
var keywordRegex = regexp.MustCompile(`^((?:[A-Za-z][A-Za-z0-9_-]*)(?:\.[A-Za-z][A-Za-z0-9_-]*)*/)?[A-Za-z][A-Za-z0-9_-]*$`)

// ValidateKeyword reports whether s is a syntactically valid keyword ident,
// e.g. "provider/id" or "db/valueType".
func ValidateKeyword(s string) error {
	if !keywordRegex.MatchString(s) {
		return &ValidationError{Reason: "the value " + quote(s) + " is not a valid keyword value"}
	}
	return nil
}

func quote(s string) string {
	return "'" + s + "'"
}
