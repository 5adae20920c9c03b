package replicate

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"time"
)

// MockInvoker stands in for the inference service when mock mode is enabled.
// It waits briefly and streams back a small generated PNG.
type MockInvoker struct {
	Delay time.Duration
}

func (m *MockInvoker) Invoke(ctx context.Context, model, prompt, sourceURL string) ([]byte, error) {
	if err := sleep(ctx, m.Delay); err != nil {
		return nil, err
	}

	data, err := placeholderPNG(prompt)
	if err != nil {
		return nil, err
	}
	out := Output{Kind: OutputStream, Stream: io.NopCloser(bytes.NewReader(data))}
	return Normalize(ctx, out, nil)
}

// placeholderPNG renders an 8x8 tile whose color is derived from the prompt.
func placeholderPNG(prompt string) ([]byte, error) {
	var h uint32 = 2166136261
	for i := 0; i < len(prompt); i++ {
		h ^= uint32(prompt[i])
		h *= 16777619
	}
	fill := color.RGBA{R: uint8(h), G: uint8(h >> 8), B: uint8(h >> 16), A: 255}

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
