package services

import (
	"iter"
	"regexp"
)

// linkPattern matches an http or https scheme followed by non-whitespace
var linkPattern = regexp.MustCompile(`https?://\S+`)

// ExtractLinks yields the URL-like substrings of text in order of appearance.
// Repeated URLs are yielded every time they occur. The sequence can be ranged over any number of times.
func ExtractLinks(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		rest := text
		for {
			loc := linkPattern.FindStringIndex(rest)
			if loc == nil {
				return
			}
			if !yield(rest[loc[0]:loc[1]]) {
				return
			}
			rest = rest[loc[1]:]
		}
	}
}

// ExtractLinkList collects ExtractLinks into a slice
func ExtractLinkList(text string) []string {
	links := make([]string, 0)
	for link := range ExtractLinks(text) {
		links = append(links, link)
	}
	return links
}
