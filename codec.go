// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package imq

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/hemant/imq/internal/base"
	"github.com/hemant/imq/internal/errors"
)

// Codec packs and unpacks envelopes for the wire. Two producers/consumers
// must agree on a mode (Config.UseGzip) to interoperate; mixing modes
// produces a Decode error on the consuming side.
type Codec interface {
	Pack(e *base.Envelope) ([]byte, error)
	Unpack(data []byte) (*base.Envelope, error)
}

// NewCodec returns the plain JSON codec, or the gzip-of-JSON codec if
// useGzip is true.
func NewCodec(useGzip bool) Codec {
	if useGzip {
		return gzipCodec{}
	}
	return jsonCodec{}
}

type jsonCodec struct{}

func (jsonCodec) Pack(e *base.Envelope) ([]byte, error) {
	return base.EncodeEnvelope(e)
}

func (jsonCodec) Unpack(data []byte) (*base.Envelope, error) {
	return base.DecodeEnvelope(data)
}

type gzipCodec struct{}

func (gzipCodec) Pack(e *base.Envelope) ([]byte, error) {
	plain, err := base.EncodeEnvelope(e)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(plain); err != nil {
		return nil, errors.E(errors.Internal, err)
	}
	if err := w.Close(); err != nil {
		return nil, errors.E(errors.Internal, err)
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Unpack(data []byte) (*base.Envelope, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.E(errors.Decode, err)
	}
	defer r.Close()
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.E(errors.Decode, err)
	}
	return base.DecodeEnvelope(plain)
}
