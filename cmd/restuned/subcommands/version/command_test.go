// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package version

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/restuned/cmd/restuned/command"
)

func TestVersionCommandPrintsVersion(t *testing.T) {
	cmd := Commands(&command.GlobalParams{})
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)

	require.NoError(t, cmd.RunE(cmd, nil))
	assert.Contains(t, buf.String(), "restuned")
}
