package main

import (
	"github.com/robotalks/fes.go/pkg/cli/sh"
	"github.com/robotalks/fes.go/pkg/env"

	_ "github.com/robotalks/fes.go/pkg/cli/cmds/params"
)

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
