// -----------------------------------------------------------------------
// Metadata matching - wildcard translation and AND-combined regex clauses
// -----------------------------------------------------------------------

package models

import (
	"regexp"
	"strings"
)

// wildcardMeta matches regex metacharacters other than * and ?.
var wildcardMeta = regexp.MustCompile(`[.+^$(){}\[\]|\\]`)

// TranslateWildcards converts caller query input to a regex: * becomes .*,
// ? becomes ., and other regex metacharacters are escaped. Input already
// containing regex syntax beyond the two wildcards is escaped literally
// unless the caller opted into raw regex.
func TranslateWildcards(pattern string, rawRegex bool) string {
	if rawRegex {
		return pattern
	}
	escaped := wildcardMeta.ReplaceAllStringFunc(pattern, func(m string) string {
		return `\` + m
	})
	escaped = strings.ReplaceAll(escaped, "*", ".*")
	escaped = strings.ReplaceAll(escaped, "?", ".")
	return escaped
}

// CompileQuery compiles a {field: pattern} query into anchored regexes with
// wildcard translation applied. Invalid patterns fail the whole query.
func CompileQuery(query map[string]string, rawRegex bool) (map[string]*regexp.Regexp, error) {
	compiled := make(map[string]*regexp.Regexp, len(query))
	for field, pattern := range query {
		re, err := regexp.Compile("^" + TranslateWildcards(pattern, rawRegex) + "$")
		if err != nil {
			return nil, err
		}
		compiled[field] = re
	}
	return compiled, nil
}

// MatchProps reports whether props satisfies every compiled clause: the key
// must be present and its value must match. Absent keys fail the match.
func MatchProps(props map[string]string, compiled map[string]*regexp.Regexp) bool {
	for field, re := range compiled {
		value, ok := props[field]
		if !ok {
			return false
		}
		if !re.MatchString(value) {
			return false
		}
	}
	return true
}
