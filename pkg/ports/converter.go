package ports

// Converter converts decoded frames into the format a sink consumes:
// pixel-format conversion for video, resampling for audio.
type Converter interface {
	// Reconfigure rebuilds the conversion context for a new input format.
	// The output format never changes.
	Reconfigure(in Format) error

	// InputFormat returns the input format the context is configured for.
	InputFormat() Format

	// Convert converts one frame. The frame must match InputFormat.
	Convert(f *Frame) (*Frame, error)
}

// ConverterFactory builds a converter with a fixed output format.
type ConverterFactory interface {
	NewConverter(in, out Format) (Converter, error)
}
