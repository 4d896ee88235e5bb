// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package command

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRootCommandRegistersSubcommandsAndConfigFlag(t *testing.T) {
	var seen *GlobalParams
	factory := func(gp *GlobalParams) *cobra.Command {
		seen = gp
		return &cobra.Command{Use: "stub"}
	}

	root := MakeRootCommand(factory)

	require.NotNil(t, seen)
	_, _, err := root.Find([]string{"stub"})
	require.NoError(t, err)

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "/etc/restuned/restuned.yaml", flag.DefValue)
}
