// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/afonsecab/rupsco/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
