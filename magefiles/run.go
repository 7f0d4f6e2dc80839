//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and shows the wallpaper in a window.
func (Run) Wallpaper() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run wallpaper...")
	if _, err := executeCmd("go", withArgs("run", ".", "run"), withStream()); err != nil {
		return err
	}
	return nil
}

// Renders 120 frames with the headless backend and prints the frame report.
func (Run) Headless() error {
	_, err := executeCmd("go", withArgs("run", ".", "render", "--frames", "120"), withStream())
	return err
}
