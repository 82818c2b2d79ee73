package ports

// Renderer displays converted video frames.
type Renderer interface {
	// Present uploads an RGBA pixel buffer of width x height for display.
	Present(pixels []byte, width, height int) error
}
