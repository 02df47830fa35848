// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
)

// compileSPIRV translates a WGSL source to SPIR-V words for HAL backends
// that do not consume WGSL directly. The dispatcher tries the WGSL source
// first and falls back to this path when the backend rejects it.
func compileSPIRV(source string) ([]uint32, error) {
	data, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("gpu: compile wgsl: %w", err)
	}
	return spirvWords(data)
}

// spirvWords repacks a SPIR-V byte stream into little-endian words.
func spirvWords(data []byte) ([]uint32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("gpu: spir-v stream of %d bytes is not word aligned", len(data))
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words, nil
}
