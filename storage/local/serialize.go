package local

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
)

func SerializeObject[T any](data *T) ([]byte, error) {
	if data == nil {
		return nil, errors.New("cannot serialize nil object")
	}
	buffer := &bytes.Buffer{}
	encoder := gob.NewEncoder(buffer)
	err := encoder.Encode(data)
	return buffer.Bytes(), err
}

func DeserializeObject[T any](input []byte) (*T, error) {
	output := new(T)
	decoder := gob.NewDecoder(bytes.NewBuffer(input))
	err := decoder.Decode(output)
	return output, err
}

// SerializeID returns a key sorting in the same order as the identities
func SerializeID[T ~int64](id T) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func DeserializeID[T ~int64](key []byte) T {
	if len(key) != 8 {
		return 0
	}
	return T(binary.BigEndian.Uint64(key))
}
