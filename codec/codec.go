// Package codec implements pluggable encoding/decoding strategies for
// cache event payloads and entity property values.
package codec

import (
	"encoding"
	"encoding/json"
	"errors"
	"sync"
)

// Codec marshals and unmarshals native Go values into bytes for one
// named encoding.
type Codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(b []byte, v interface{}) error
}

var (
	mu     sync.RWMutex
	codecs = map[string]Codec{
		"bytes":  bytesCodec{},
		"binary": binaryCodec{},
		"string": stringCodec{},
		"json":   jsonCodec{},
	}
)

// Register adds or replaces the codec used for name. Safe for concurrent
// use with Get; an entity store may register a custom encoding for its
// own property values at init time.
func Register(name string, c Codec) {
	mu.Lock()
	defer mu.Unlock()
	codecs[name] = c
}

// Get returns the codec registered for name, if any.
func Get(name string) (Codec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := codecs[name]
	return c, ok
}

type bytesCodec struct{}

func (bytesCodec) Marshal(v interface{}) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, errors.New("codec: bytes encoding requires a []byte value")
	}
	return b, nil
}

func (bytesCodec) Unmarshal(b []byte, v interface{}) error {
	dst, ok := v.(*[]byte)
	if !ok {
		return errors.New("codec: bytes decoding requires a *[]byte")
	}
	*dst = b
	return nil
}

type binaryCodec struct{}

func (binaryCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(encoding.BinaryMarshaler)
	if !ok {
		return nil, errors.New("codec: binary encoding requires an encoding.BinaryMarshaler")
	}
	return m.MarshalBinary()
}

func (binaryCodec) Unmarshal(b []byte, v interface{}) error {
	m, ok := v.(encoding.BinaryUnmarshaler)
	if !ok {
		return errors.New("codec: binary decoding requires an encoding.BinaryUnmarshaler")
	}
	return m.UnmarshalBinary(b)
}

type stringCodec struct{}

func (stringCodec) Marshal(v interface{}) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, errors.New("codec: string encoding requires a string value")
	}
	return []byte(s), nil
}

func (stringCodec) Unmarshal(b []byte, v interface{}) error {
	dst, ok := v.(*string)
	if !ok {
		return errors.New("codec: string decoding requires a *string")
	}
	*dst = string(b)
	return nil
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(b []byte, v interface{}) error {
	return json.Unmarshal(b, v)
}
