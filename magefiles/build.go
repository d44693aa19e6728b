//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// All compiles every package.
func (Build) All() error {
	_, err := executeCmd("go", withArgs("build", "./..."), withStream())
	return err
}

// Demo builds the visbufdemo binary into bin/.
func (Build) Demo() error {
	_, err := executeCmd("go", withArgs("build", "-o", "bin/visbufdemo", "./cmd/visbufdemo"), withStream())
	return err
}
