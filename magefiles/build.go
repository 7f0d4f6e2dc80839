//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

const (
	shaderSourceDir = "shaders"
	shaderOutputDir = "assets/shaders"
)

// Compiles every GLSL program under shaders/ to assets/shaders/<name>.spv.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the livewall binary into bin/.
func (Build) Binary() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "livewall"), "."), withStream())
	return err
}

func buildShaders() error {
	if err := os.MkdirAll(shaderOutputDir, 0o755); err != nil {
		return err
	}
	var sources []string
	for _, ext := range []string{"vert", "frag", "comp"} {
		matches, err := filepath.Glob(filepath.Join(shaderSourceDir, "*."+ext))
		if err != nil {
			return err
		}
		sources = append(sources, matches...)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no shaders found in %s", shaderSourceDir)
	}
	for _, src := range sources {
		name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		out := filepath.Join(shaderOutputDir, name+".spv")
		if _, err := executeCmd("glslc", withArgs(src, "-o", out), withStream()); err != nil {
			return err
		}
	}
	return nil
}
