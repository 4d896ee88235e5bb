// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFilterFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filter.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestFilterListAllowListTakesPrecedence(t *testing.T) {
	allow := writeFilterFile(t, "firefox, chrome\n")
	block := writeFilterFile(t, "firefox\n")

	fl, err := LoadFilterList(allow, block)
	require.NoError(t, err)

	assert.True(t, fl.Allowed("firefox"))
	assert.False(t, fl.Allowed("vim"))
}

func TestFilterListBlockListOnly(t *testing.T) {
	block := writeFilterFile(t, "malware\n")
	fl, err := LoadFilterList("", block)
	require.NoError(t, err)

	assert.False(t, fl.Allowed("malware"))
	assert.True(t, fl.Allowed("firefox"))
}

func TestFilterListNoConfigAllowsEverything(t *testing.T) {
	fl, err := LoadFilterList("", "")
	require.NoError(t, err)
	assert.True(t, fl.Allowed("anything"))
}
