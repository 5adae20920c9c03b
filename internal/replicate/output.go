package replicate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type OutputKind int

const (
	OutputURL OutputKind = iota + 1
	OutputURLList
	OutputBytes
	OutputChunks
	OutputStream
)

func (k OutputKind) String() string {
	switch k {
	case OutputURL:
		return "url"
	case OutputURLList:
		return "url_list"
	case OutputBytes:
		return "bytes"
	case OutputChunks:
		return "chunks"
	case OutputStream:
		return "stream"
	}
	return "unknown"
}

// Output is a prediction result in exactly one of the shapes a model may return.
//
//	OutputURL      URLs[0]
//	OutputURLList  URLs
//	OutputBytes    Chunks[0]
//	OutputChunks   Chunks, in order
//	OutputStream   Stream
type Output struct {
	Kind   OutputKind
	URLs   []string
	Chunks [][]byte
	Stream io.ReadCloser
}

var ErrEmptyOutput = errors.New("prediction returned no content")

// DecodeOutput classifies a raw prediction output once. Strings are URLs unless
// they are data URIs; arrays of strings are URL lists; arrays of numbers are raw
// bytes; arrays of arrays of numbers are chunks.
func DecodeOutput(raw json.RawMessage) (Output, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Output{}, ErrEmptyOutput
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		if s == "" {
			return Output{}, ErrEmptyOutput
		}
		if data, ok, err := decodeDataURI(s); ok {
			if err != nil {
				return Output{}, err
			}
			return Output{Kind: OutputBytes, Chunks: [][]byte{data}}, nil
		}
		return Output{Kind: OutputURL, URLs: []string{s}}, nil
	}

	var list []string
	if err := json.Unmarshal(trimmed, &list); err == nil {
		if len(list) == 0 {
			return Output{}, ErrEmptyOutput
		}
		return Output{Kind: OutputURLList, URLs: list}, nil
	}

	var single []byte
	if err := json.Unmarshal(trimmed, (*byteArray)(&single)); err == nil {
		return Output{Kind: OutputBytes, Chunks: [][]byte{single}}, nil
	}

	var chunks []byteArray
	if err := json.Unmarshal(trimmed, &chunks); err == nil {
		out := make([][]byte, len(chunks))
		for i, c := range chunks {
			out[i] = c
		}
		return Output{Kind: OutputChunks, Chunks: out}, nil
	}

	return Output{}, fmt.Errorf("unsupported prediction output: %.64s", string(trimmed))
}

// byteArray decodes a JSON array of integers 0-255.
type byteArray []byte

func (b *byteArray) UnmarshalJSON(data []byte) error {
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	out := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return fmt.Errorf("byte value %d out of range", n)
		}
		out[i] = byte(n)
	}
	*b = out
	return nil
}

func decodeDataURI(s string) ([]byte, bool, error) {
	if !strings.HasPrefix(s, "data:") {
		return nil, false, nil
	}
	comma := strings.IndexByte(s, ',')
	if comma < 0 || !strings.HasSuffix(s[:comma], ";base64") {
		return nil, true, fmt.Errorf("unsupported data uri")
	}
	data, err := base64.StdEncoding.DecodeString(s[comma+1:])
	if err != nil {
		return nil, true, fmt.Errorf("failed to decode data uri: %w", err)
	}
	return data, true, nil
}

// Fetcher retrieves the content behind a URL output.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Normalize turns any output shape into one byte buffer. A URL list yields its
// first image; chunks are concatenated in order; streams are drained and closed.
func Normalize(ctx context.Context, out Output, fetcher Fetcher) ([]byte, error) {
	var data []byte
	var err error

	switch out.Kind {
	case OutputURL, OutputURLList:
		if len(out.URLs) == 0 || out.URLs[0] == "" {
			return nil, ErrEmptyOutput
		}
		data, err = fetcher.Fetch(ctx, out.URLs[0])
	case OutputBytes, OutputChunks:
		data = bytes.Join(out.Chunks, nil)
	case OutputStream:
		if out.Stream == nil {
			return nil, ErrEmptyOutput
		}
		defer out.Stream.Close()
		data, err = io.ReadAll(out.Stream)
	default:
		return nil, fmt.Errorf("unknown output kind %d", out.Kind)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyOutput
	}
	return data, nil
}
