// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package classifier

import (
	"regexp"
	"strconv"
	"strings"
)

// removalSet lists tokens dropped regardless of position, per spec.md
// §4.3's text-cleaning pipeline.
var removalSet = map[string]bool{
	"unconfined": true,
	"app.slice":  true,
	"usr":        true,
	"bin":        true,
	"lib":        true,
}

var removalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^user\.slice$`),
	regexp.MustCompile(`^user-\d+\.slice$`),
	regexp.MustCompile(`^user@\d+\.service$`),
	regexp.MustCompile(`^app-.*\.slice$`),
	regexp.MustCompile(`^vte-spawn-.*\.scope$`),
}

// browserVocabulary is preserved verbatim (never dropped, never
// deduplicated) because it's the single strongest discriminator for the
// "browser" class.
var browserVocabulary = map[string]bool{
	"firefox": true, "chrome": true, "chromium": true, "webkit": true,
	"gecko": true, "safari": true, "opera": true, "brave": true,
	"vivaldi": true, "edge": true, "lynx": true, "w3m": true,
	"falkon": true, "httrack": true, "konqueror": true, "amfora": true,
	"luakit": true, "epiphany": true,
}

var (
	hexLiteralPattern = regexp.MustCompile(`^0x[0-9a-f]+$`)
	longDigitRun      = regexp.MustCompile(`\d{4,}`)
	nonAlnumSplitter  = regexp.MustCompile(`[,\[\]{}()]`)
)

// cleanTokens runs the spec.md §4.3 cleaning pipeline over raw
// concatenated feature text: lowercase, strip commas/brackets, split on
// whitespace, drop removal-set and pure-numeric tokens, replace hex
// literals and 4+ digit runs with placeholders, keep tokens of length
// >= 2 (browser-vocabulary tokens are always kept).
func cleanTokens(raw string) []string {
	lowered := strings.ToLower(raw)
	stripped := nonAlnumSplitter.ReplaceAllString(lowered, " ")
	fields := strings.Fields(stripped)

	out := make([]string, 0, len(fields))
	for _, tok := range fields {
		if browserVocabulary[tok] {
			out = append(out, tok)
			continue
		}
		if removalSet[tok] || matchesRemovalPattern(tok) {
			continue
		}
		if _, err := strconv.Atoi(tok); err == nil {
			continue
		}
		if hexLiteralPattern.MatchString(tok) {
			out = append(out, "<hex>")
			continue
		}
		tok = longDigitRun.ReplaceAllString(tok, "<num>")
		if len(tok) < 2 {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func matchesRemovalPattern(tok string) bool {
	for _, p := range removalPatterns {
		if p.MatchString(tok) {
			return true
		}
	}
	return false
}
