// Copyright 2025 PlantPulse Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package encoding is the wire codec for sync frames: JSON via safejson,
// zstd-compressed above a size threshold. Compressed frames are detected by
// the zstd magic bytes, so both sides can mix compressed and uncompressed
// traffic freely.
package encoding

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/plantpulse/plantpulse/pkg/tools/safejson"
)

// CompressionThreshold is the size in bytes above which frames are compressed.
const CompressionThreshold = 1024 // 1KB

var (
	encoderPool = sync.Pool{
		New: func() interface{} {
			encoder, _ := zstd.NewWriter(nil,
				zstd.WithEncoderLevel(zstd.SpeedFastest))

			return encoder
		},
	}

	decoderPool = sync.Pool{
		New: func() interface{} {
			decoder, _ := zstd.NewReader(nil)

			return decoder
		},
	}
)

// EncodeFrame marshals v and compresses the result when it crosses the
// threshold.
func EncodeFrame(v any) ([]byte, error) {
	raw, err := safejson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame: %w", err)
	}

	if len(raw) < CompressionThreshold {
		return raw, nil
	}

	return Compress(raw)
}

// DecodeFrame decompresses raw if needed and unmarshals it into v.
func DecodeFrame(raw []byte, v any) error {
	plain, err := Decompress(raw)
	if err != nil {
		return fmt.Errorf("failed to decompress frame: %w", err)
	}

	if err := safejson.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("failed to unmarshal frame: %w", err)
	}

	return nil
}

func Compress(message []byte) ([]byte, error) {
	encoder, ok := encoderPool.Get().(*zstd.Encoder)
	if !ok {
		var err error
		encoder, err = zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
	}
	defer encoderPool.Put(encoder)

	buffer := new(bytes.Buffer)
	buffer.Grow(len(message))
	encoder.Reset(buffer)

	if _, err := encoder.Write(message); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}

	// Copy out of the pooled buffer to avoid data races.
	result := make([]byte, buffer.Len())
	copy(result, buffer.Bytes())

	return result, nil
}

func Decompress(message []byte) ([]byte, error) {
	if !isCompressed(message) {
		result := make([]byte, len(message))
		copy(result, message)

		return result, nil
	}

	decoder, ok := decoderPool.Get().(*zstd.Decoder)
	if !ok {
		var err error
		decoder, err = zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
	}
	defer decoderPool.Put(decoder)

	if err := decoder.Reset(bytes.NewReader(message)); err != nil {
		return nil, err
	}

	buffer := new(bytes.Buffer)
	if _, err := io.Copy(buffer, decoder); err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

// isCompressed checks for zstd magic bytes (0x28 0xB5 0x2F 0xFD).
func isCompressed(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	magic := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24

	return magic == 0xFD2FB528
}
