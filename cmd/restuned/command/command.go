// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

// Package command builds restuned's root cobra command and the global
// flags every subcommand shares, in the shape cmd/agent/command uses
// for its own root: a GlobalParams struct populated by persistent
// flags, and a factory function per subcommand.
package command

import (
	"github.com/spf13/cobra"
)

// GlobalParams holds flags common to every restuned subcommand.
type GlobalParams struct {
	ConfFilePath string
}

// SubcommandFactory builds one subcommand against the shared
// GlobalParams.
type SubcommandFactory func(globalParams *GlobalParams) *cobra.Command

// MakeRootCommand assembles the root "restuned" command from a set of
// subcommand factories, registering --config as a persistent flag.
func MakeRootCommand(factories ...SubcommandFactory) *cobra.Command {
	globalParams := &GlobalParams{}

	root := &cobra.Command{
		Use:   "restuned",
		Short: "restuned is the device resource-tuning daemon",
		Long: "restuned arbitrates contending resource-tune requests from system " +
			"components and third-party clients against a fixed hardware topology.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&globalParams.ConfFilePath, "config", "c",
		"/etc/restuned/restuned.yaml", "path to restuned's configuration file")

	for _, factory := range factories {
		root.AddCommand(factory(globalParams))
	}
	return root
}
