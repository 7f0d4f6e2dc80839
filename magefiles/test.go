//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every package test with the race detector.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

// Runs the renderer and headless backend tests only.
func (Test) Renderer() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./engine/renderer/..."), withDir("."), withStream())
	return err
}
