package embedding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// FormatFloat32 is the only print format currently produced: a little-endian
// sequence of float32 vector elements.
const FormatFloat32 = "f32le"

// ErrEmptyPrint is returned when a print carries no data at all.
var ErrEmptyPrint = errors.New("empty face print")

// Print is a face feature vector in serialized form. Prints are immutable
// once created and owned by whichever cluster or tree node holds them.
type Print struct {
	Data   []byte `json:"data"`
	Count  int    `json:"count"`
	Format string `json:"format"`
}

// IsEmpty reports whether the print carries no vector data.
func (p Print) IsEmpty() bool {
	return len(p.Data) == 0
}

// Encode serializes a float32 vector into a Print.
func Encode(vec []float32) Print {
	data := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}
	return Print{
		Data:   data,
		Count:  len(vec),
		Format: FormatFloat32,
	}
}

// Decode parses a Print back into a float32 vector. A print that fails to
// decode is treated by callers as absent, never as a fatal condition.
func Decode(p Print) ([]float32, error) {
	if p.IsEmpty() {
		return nil, ErrEmptyPrint
	}
	if p.Format != FormatFloat32 {
		return nil, fmt.Errorf("unsupported print format %q", p.Format)
	}
	if len(p.Data)%4 != 0 {
		return nil, fmt.Errorf("print data length %d is not a multiple of 4", len(p.Data))
	}
	n := len(p.Data) / 4
	if p.Count != 0 && p.Count != n {
		return nil, fmt.Errorf("print element count mismatch: header says %d, data holds %d", p.Count, n)
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(p.Data[4*i:]))
	}
	return vec, nil
}

// Equal reports whether two prints carry byte-identical vector data.
func Equal(a, b Print) bool {
	return a.Format == b.Format && bytes.Equal(a.Data, b.Data)
}
