//go:build !gpu

package main

// Headless builds render into the noop backend.
import _ "github.com/gogpu/wgpu/hal/noop"
