// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

// Package version implements restuned's "version" subcommand.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DataDog/restuned/cmd/restuned/command"
)

// Version is set at build time via -ldflags; "dev" otherwise.
var Version = "dev"

// Commands returns the "version" subcommand.
func Commands(_ *command.GlobalParams) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the restuned version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "restuned %s\n", Version)
			return nil
		},
	}
}
