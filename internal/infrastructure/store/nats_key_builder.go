// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/logging"
)

// KeyBuilder maps credential keys such as "<user>/token" onto NATS KV keys.
type KeyBuilder struct {
	prefix string
	encode bool
}

// NewKeyBuilder creates a key builder with an optional prefix. With encode
// set every segment is base64 encoded, which allows user ids containing
// characters NATS rejects in keys (for example "auth0|abc").
func NewKeyBuilder(prefix string, encode bool) *KeyBuilder {
	return &KeyBuilder{prefix: prefix, encode: encode}
}

// Key builds the KV key for key.
func (kb *KeyBuilder) Key(key string) string {
	fullKey := key
	if kb.prefix != "" {
		fullKey = fmt.Sprintf("%s/%s", kb.prefix, key)
	}
	if !kb.encode {
		return fullKey
	}

	encodedKey, err := kb.EncodeKey(fullKey)
	if err != nil {
		slog.Error("error encoding key", logging.ErrKey, err, "key", fullKey)
		return fullKey
	}
	return encodedKey
}

// EncodeKey encodes a key for NATS KV store.
// From https://github.com/ripienaar/encodedkv
//
// NATS limitations: https://docs.nats.io/nats-concepts/jetstream/key-value-store#notes
func (kb *KeyBuilder) EncodeKey(key string) (string, error) {
	res := []string{}
	for _, part := range strings.Split(strings.TrimPrefix(key, "/"), "/") {
		if part == "" {
			continue
		}
		dst := make([]byte, base64.RawURLEncoding.EncodedLen(len(part)))
		base64.RawURLEncoding.Encode(dst, []byte(part))
		res = append(res, string(dst))
	}

	if len(res) == 0 {
		return "", nats.ErrInvalidKey
	}

	return strings.Join(res, "."), nil
}

// DecodeKey reverses EncodeKey.
func (kb *KeyBuilder) DecodeKey(key string) (string, error) {
	res := []string{}
	for _, part := range strings.Split(key, ".") {
		k, err := base64.RawURLEncoding.DecodeString(part)
		if err != nil {
			return "", err
		}
		res = append(res, string(k))
	}

	if len(res) == 0 {
		return "", nats.ErrInvalidKey
	}

	return strings.Join(res, "/"), nil
}
