package marginalia

import "context"

// Generator produces an answer for a request on a cache miss. Generation is
// typically a model call; the cache never invokes it when a cached answer
// can be served.
type Generator interface {
	Generate(ctx context.Context, req Request) (Answer, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (Answer, error)

// Compile-time check that GeneratorFunc implements Generator.
var _ Generator = GeneratorFunc(nil)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (Answer, error) {
	return f(ctx, req)
}
