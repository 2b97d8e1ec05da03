// Package gpu runs the pulse decode pipeline on an accelerator.
//
// The package defines a small device API (Backend, Context, Buffer, Queue,
// Program, Kernel, Event) modelled on OpenCL command queues: kernels are
// enqueued with explicit wait-lists, and each returned Event carries
// device-side profiling timestamps. Two backends implement it:
//
//   - SoftwareBackend executes kernels on host goroutines. It is always
//     available and is used for development, tests and cross-validation.
//   - WebGPUBackend (build tag "webgpu") runs WGSL compute shaders through
//     wgpu-native.
//
// Decoder drives the three-kernel decode chain (phase code, transform, peak
// find) once per range row on top of either backend.
package gpu
