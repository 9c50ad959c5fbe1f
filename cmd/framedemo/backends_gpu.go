//go:build gpu

package main

// GPU builds link every backend of the platform plus the software
// rasterizer, which occupies the slot the noop backend uses otherwise.
import _ "github.com/gogpu/wgpu/hal/allbackends"
