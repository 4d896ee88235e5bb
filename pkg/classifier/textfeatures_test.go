// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanTokensDropsRemovalSet(t *testing.T) {
	tokens := cleanTokens("unconfined user.slice user-1000.slice user@1000.service app-foo.slice vte-spawn-abc.scope usr bin lib")
	assert.Empty(t, tokens)
}

func TestCleanTokensDropsPureNumeric(t *testing.T) {
	tokens := cleanTokens("12345 firefox 42")
	assert.NotContains(t, tokens, "12345")
	assert.NotContains(t, tokens, "42")
}

func TestCleanTokensReplacesHexLiterals(t *testing.T) {
	tokens := cleanTokens("0x7f3a2100")
	assert.Equal(t, []string{"<hex>"}, tokens)
}

func TestCleanTokensReplacesLongDigitRuns(t *testing.T) {
	tokens := cleanTokens("pid123456of process")
	assert.Contains(t, tokens, "pid<num>of")
}

func TestCleanTokensKeepsBrowserVocabularyAsDuplicates(t *testing.T) {
	tokens := cleanTokens("firefox firefox chrome")
	count := 0
	for _, tok := range tokens {
		if tok == "firefox" {
			count++
		}
	}
	assert.Equal(t, 2, count)
	assert.Contains(t, tokens, "chrome")
}

func TestCleanTokensDropsShortTokens(t *testing.T) {
	tokens := cleanTokens("a bb ccc")
	assert.NotContains(t, tokens, "a")
	assert.Contains(t, tokens, "bb")
	assert.Contains(t, tokens, "ccc")
}
