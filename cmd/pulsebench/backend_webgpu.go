//go:build webgpu

package main

import "github.com/cwbudde/algo-pulse/gpu"

func registerGPUBackend() {
	gpu.RegisterWebGPUBackend()
}
