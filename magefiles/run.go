//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Demo runs visbufdemo with its default scene.
func (Run) Demo() error {
	mg.Deps(Build.Demo)
	fmt.Println("Run visbufdemo...")
	_, err := executeCmd("bin/visbufdemo", withArgs("-frames", "3"), withStream())
	return err
}
