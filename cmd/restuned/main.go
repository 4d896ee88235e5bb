// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

// Command restuned is the device resource-tuning daemon's entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/DataDog/restuned/cmd/restuned/command"
	"github.com/DataDog/restuned/cmd/restuned/subcommands/run"
	"github.com/DataDog/restuned/cmd/restuned/subcommands/version"
)

func main() {
	root := command.MakeRootCommand(run.Commands, version.Commands)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
