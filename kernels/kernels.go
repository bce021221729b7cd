// Package kernels holds the compute and render kernel sources and the binding
// layout each stage expects.
package kernels

import (
	_ "embed"
	"fmt"

	"github.com/pthm-cable/physarum/device"
)

// Kernel names. Devices identify a stage by its shader module label.
const (
	Combine = "combine"
	Agents  = "physarum"
	Diffuse = "diffuse"
	Render  = "render"
)

// EntryPoint is the entry point of every kernel.
const EntryPoint = "main"

var (
	//go:embed combine.comp
	combineSource string
	//go:embed physarum.comp
	agentsSource string
	//go:embed diffuse.comp
	diffuseSource string
	//go:embed render.frag
	renderSource string
)

// Binding slots, in bind group order.
//
//	combine:  trails, combined, sim config, attraction, deposits
//	physarum: particles, deposits, combined, sim config, population params
//	diffuse:  deposits, trails, sim config, population params
//	render:   combined, sim config, colors
//
// Agents deposit into a copy of the trail maps made by combine, and diffuse
// blurs that copy back into the trail maps, so no stage reads cells another
// invocation of the same stage writes.
var Bindings = map[string]int{
	Combine: 5,
	Agents:  5,
	Diffuse: 4,
	Render:  3,
}

// SimConfigWords is the length of the global parameter block (width, height, populations).
const SimConfigWords = 3

// ColorWords is the length of the render color block (8 species × RGBA).
const ColorWords = 32

// Source returns the source text of a kernel.
func Source(name string) (string, error) {
	switch name {
	case Combine:
		return combineSource, nil
	case Agents:
		return agentsSource, nil
	case Diffuse:
		return diffuseSource, nil
	case Render:
		return renderSource, nil
	}
	return "", fmt.Errorf("%w: %q", device.ErrUnknownKernel, name)
}

// Module returns a shader module for a kernel.
func Module(name string) (device.ShaderModule, error) {
	src, err := Source(name)
	if err != nil {
		return device.ShaderModule{}, err
	}
	return device.ShaderModule{Label: name, Code: src, EntryPoint: EntryPoint}, nil
}

// MustModule is Module for the built-in kernel names.
func MustModule(name string) device.ShaderModule {
	m, err := Module(name)
	if err != nil {
		panic(err)
	}
	return m
}

// ComputeNames lists the compute stages in execution order.
func ComputeNames() []string {
	return []string{Combine, Agents, Diffuse}
}
