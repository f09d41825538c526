// Package json wraps json-iterator configured to be compatible with the standard library.
package json

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

// RawMessage is a raw encoded JSON value, it can be used to delay decoding.
type RawMessage = jsoniter.RawMessage

// nolint: gochecknoglobals
var api = jsoniter.ConfigCompatibleWithStandardLibrary

func Encode(v any, pretty bool) ([]byte, error) {
	var data []byte
	var err error
	if pretty {
		data, err = api.MarshalIndent(v, "", "  ")
	} else {
		data, err = api.Marshal(v)
	}
	if err != nil {
		return nil, err
	}
	if pretty {
		data = append(data, '\n')
	}
	return data, nil
}

func EncodeString(v any, pretty bool) (string, error) {
	data, err := Encode(v, pretty)
	return string(data), err
}

func MustEncode(v any, pretty bool) []byte {
	data, err := Encode(v, pretty)
	if err != nil {
		panic(err)
	}
	return data
}

func Decode(data []byte, v any) error {
	if err := api.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "invalid JSON: %s", err.Error())
	}
	return nil
}

func DecodeString(data string, v any) error {
	return Decode([]byte(data), v)
}
