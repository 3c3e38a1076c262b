package prs

// Codec adapts the package functions to interfaces that expect both
// directions to report errors. Compression itself cannot fail.
type Codec struct{}

func (Codec) Compress(data []byte) ([]byte, error) {
	return Compress(data), nil
}

func (Codec) Decompress(data []byte) ([]byte, error) {
	return Decompress(data)
}
