// Package wasmrun performs the pre-execution compile step for Rust
// sessions: it validates a session's script_content as a WebAssembly
// module using wazero's ahead-of-time compiler, producing the bytes that
// become the session's compiled_artifact. Actual invocation still goes
// through the uniform worker transport path alongside NodeJS and Python;
// this package only resolves the pending -> {success, error} edge of the
// compile_status DAG.
package wasmrun

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/tetratelabs/wazero"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

const wasmMagic = "\x00asm"

// Compiler wraps one wazero runtime instance, shared across compile calls.
type Compiler struct {
	runtime wazero.Runtime
}

// NewCompiler builds a Compiler backed by a fresh wazero runtime.
func NewCompiler(ctx context.Context) *Compiler {
	return &Compiler{runtime: wazero.NewRuntime(ctx)}
}

// Close releases the underlying wazero runtime.
func (c *Compiler) Close(ctx context.Context) error {
	return c.runtime.Close(ctx)
}

// Compile decodes scriptContent as a WebAssembly module (raw bytes or
// base64-encoded) and validates it via wazero's ahead-of-time compiler.
// The returned bytes are the session's compiled_artifact on success; a
// compilation-kind error on failure becomes the session's compile_error.
func (c *Compiler) Compile(ctx context.Context, scriptContent string) ([]byte, error) {
	wasmBytes, err := decodeWasm(scriptContent)
	if err != nil {
		return nil, lambdaerr.Compilation("script_content is not a valid WebAssembly module", err)
	}

	mod, err := c.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, lambdaerr.Compilation("WebAssembly module failed to compile", err)
	}
	defer mod.Close(ctx)

	return wasmBytes, nil
}

func decodeWasm(scriptContent string) ([]byte, error) {
	if strings.HasPrefix(scriptContent, wasmMagic) {
		return []byte(scriptContent), nil
	}

	decoded, err := base64.StdEncoding.DecodeString(scriptContent)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}
