// Package device is the resource-creation facade over a hal.Device.
//
// A Device owns an upload encoder, a fence and a persistent descriptor
// heap. Every creation call stages its data in a CPU-writable buffer,
// records a copy bracketed by state transitions, submits and blocks until
// the copy has completed, so returned resources are immediately usable by
// later GPU work. Uploads are serialized; there is never more than one in
// flight.
//
// Basic usage:
//
//	dev, err := device.New(halDevice, queue, device.WithLogger(logger))
//	vb, err := dev.CreateBuffer(device.KindVertex, vertices, uint64(len(vertices)))
//	tex, err := dev.LoadTexture("textures/albedo.png")
//	srv, err := dev.CreateShaderResourceView2D(tex, gputypes.TextureFormatRGBA8Unorm)
//	defer dev.Release()
package device
