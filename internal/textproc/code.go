package textproc

import (
	"html"
	"regexp"
	"strings"
)

// Code regions are cut out of the raw text before any markup stripping so
// their contents survive byte-for-byte. When two patterns match at the same
// offset the earlier one wins; fenced blocks first so inline backticks never
// split them.
var codePatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```[a-zA-Z0-9+#-]*\n?(.*?)```"),
	regexp.MustCompile(`(?s)<pre[^>]*>\s*<code[^>]*>(.*?)</code>\s*</pre>`),
	regexp.MustCompile(`(?s)<code[^>]*>(.*?)</code>`),
	regexp.MustCompile(`(?s)<pre[^>]*>(.*?)</pre>`),
	regexp.MustCompile("`([^`\n]+)`"),
}

var (
	markupTagRe  = regexp.MustCompile(`<[^>]*>?`)
	annotationRe = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)`)
	classNameRe  = regexp.MustCompile(`\b([A-Z][A-Za-z0-9_]{2,})\b`)
	methodCallRe = regexp.MustCompile(`\b([a-zA-Z_][A-Za-z0-9_]*)\s*\(`)
	sqlWordRe    = regexp.MustCompile(`[A-Za-z_]+`)
)

// sqlKeywords is the fixed allow-list of SQL keywords promoted to code
// keywords when they appear inside a code region.
var sqlKeywords = map[string]struct{}{
	"select": {}, "insert": {}, "update": {}, "delete": {}, "from": {},
	"where": {}, "join": {}, "inner": {}, "outer": {}, "left": {},
	"right": {}, "group": {}, "order": {}, "having": {}, "union": {},
	"create": {}, "alter": {}, "drop": {}, "table": {}, "index": {},
	"distinct": {}, "limit": {}, "offset": {}, "values": {},
}

// splitCode removes every delimited code region from raw and returns the
// remaining prose plus the regions verbatim, in source order. Each step
// consumes the earliest match across all patterns so regions of different
// kinds stay interleaved the way the document wrote them.
func splitCode(raw string) (prose string, regions []string) {
	var b strings.Builder
	for {
		var loc []int
		for _, re := range codePatterns {
			if m := re.FindStringSubmatchIndex(raw); m != nil && (loc == nil || m[0] < loc[0]) {
				loc = m
			}
		}
		if loc == nil {
			break
		}
		b.WriteString(raw[:loc[0]])
		b.WriteByte(' ')
		if body := raw[loc[2]:loc[3]]; strings.TrimSpace(body) != "" {
			regions = append(regions, body)
		}
		raw = raw[loc[1]:]
	}
	b.WriteString(raw)
	return b.String(), regions
}

// codeKeywords derives the searchable identifiers from one code region:
// @annotations, capitalized class-like names, method-call targets, and the
// SQL keyword allow-list. All are lowercased and never stemmed.
func codeKeywords(region string, into map[string]struct{}) {
	for _, m := range annotationRe.FindAllStringSubmatch(region, -1) {
		into[strings.ToLower(m[1])] = struct{}{}
	}
	for _, m := range classNameRe.FindAllStringSubmatch(region, -1) {
		into[strings.ToLower(m[1])] = struct{}{}
	}
	for _, m := range methodCallRe.FindAllStringSubmatch(region, -1) {
		into[strings.ToLower(m[1])] = struct{}{}
	}
	for _, m := range sqlWordRe.FindAllString(region, -1) {
		lower := strings.ToLower(m)
		if _, ok := sqlKeywords[lower]; ok {
			into[lower] = struct{}{}
		}
	}
}

// ExtractCodeKeywords returns the code keywords found in all delimited code
// regions of raw. The result is a set of lowercased, unstemmed terms.
func ExtractCodeKeywords(raw string) map[string]struct{} {
	_, regions := splitCode(raw)
	keywords := make(map[string]struct{})
	for _, region := range regions {
		codeKeywords(region, keywords)
	}
	return keywords
}

// ExtractCodeRegions returns the verbatim code regions of raw, in source
// order. Used by the answer synthesizer to present code examples untouched.
func ExtractCodeRegions(raw string) []string {
	_, regions := splitCode(raw)
	return regions
}

// StripMarkup returns the prose of raw with code regions cut out, markup
// tags removed, and HTML entities decoded. Used for result excerpts.
func StripMarkup(raw string) string {
	prose, _ := splitCode(raw)
	return html.UnescapeString(markupTagRe.ReplaceAllString(prose, " "))
}
