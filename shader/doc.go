// Package shader compiles WGSL shader files into backend bytecode and
// caches the results.
//
// A Cache resolves paths under a data root, compiles with naga to the
// target of the active backend (DXIL for DX12, SPIR-V everywhere else, or
// HLSL text on request) and memoizes results by stage, path, entry point
// and target. Compilation failures are returned as *CompileError carrying
// the compiler diagnostics; a failed compile never yields bytecode.
//
// The cache has an explicit lifetime: Init before use, Close before the
// device that consumes its modules is destroyed.
package shader
