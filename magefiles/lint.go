//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binLint  = "golangci-lint"
	binGofmt = "gofmt"
)

// sourceDirs are the trees checked by Fmt.
var sourceDirs = []string{"cmd", "internal", "pkg", "magefiles"}

// Lint runs go vet and golangci-lint after the formatting check.
func Lint() error {
	mg.Deps(Fmt)
	if err := sh.RunV(binGo, "vet", "./..."); err != nil {
		return err
	}
	return sh.RunV(binLint, "run", "./...")
}

// Fmt fails when any Go file is not gofmt-clean and lists the offenders.
func Fmt() error {
	out, err := sh.Output(binGofmt, append([]string{"-l"}, sourceDirs...)...)
	if err != nil {
		return err
	}
	if out = strings.TrimSpace(out); out != "" {
		return fmt.Errorf("files need gofmt:\n%s", out)
	}
	return nil
}
