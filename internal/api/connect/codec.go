// Package connect provides the Connect RPC control service, its client and
// the admin authentication interceptor.
package connect

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// jsonCodec marshals plain Go message structs as JSON. It registers under
// the "json" name so Connect serves application/json and
// application/connect+json requests with it.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal message")
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return errors.Wrap(err, "failed to unmarshal message")
	}
	return nil
}
