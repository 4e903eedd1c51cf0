//go:build !llama

package backend

// llamaBuilt indicates this binary was compiled with real llama support.
const llamaBuilt = false

// openLlama refuses to load a model in builds without the llama tag.
func openLlama(Options) (Model, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
