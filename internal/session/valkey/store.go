package sessionvalkey

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/fitgearzzz/storefront-auth/internal/serviceerr"
)

// store is a thin typed layer over the valkey client: namespaced keys, JSON
// values, native TTL expiry.
type store struct {
	valkey valkey.Client
	prefix string
}

func newStore(valkeyClient valkey.Client, prefix string) *store {
	return &store{
		valkey: valkeyClient,
		prefix: strings.TrimSuffix(prefix, ":"),
	}
}

func (s *store) key(objectType ObjectType, objectID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, objectType, objectID)
}

func (s *store) encode(data any) ([]byte, error) {
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling json: %w", err)
	}

	return bytes, nil
}

func (s *store) decode(data []byte, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshaling json: %w", err)
	}

	return nil
}

func (s *store) Set(ctx context.Context, objectType ObjectType, objectID string, data any, duration time.Duration) error {
	bytes, err := s.encode(data)
	if err != nil {
		return err
	}

	cmd := s.valkey.B().Set().Key(s.key(objectType, objectID)).Value(valkey.BinaryString(bytes)).Ex(duration).Build()
	if err := s.valkey.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("setting key: %w", err)
	}

	return nil
}

func (s *store) Get(ctx context.Context, objectType ObjectType, objectID string, target any) error {
	cmd := s.valkey.B().Get().Key(s.key(objectType, objectID)).Build()

	bytes, err := s.valkey.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return fmt.Errorf("%w: %s %s", serviceerr.ErrNotFound, objectType, objectID)
		}

		return fmt.Errorf("getting key: %w", err)
	}

	return s.decode(bytes, target)
}

// Destroy deletes the object and reports whether it existed.
func (s *store) Destroy(ctx context.Context, objectType ObjectType, objectID string) (bool, error) {
	cmd := s.valkey.B().Del().Key(s.key(objectType, objectID)).Build()

	deleted, err := s.valkey.Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, fmt.Errorf("deleting key: %w", err)
	}

	return deleted > 0, nil
}

// getStoreObjects collects all objects of one type by scanning the keyspace.
func getStoreObjects[T any](ctx context.Context, s *store, objectType ObjectType) ([]T, error) {
	var objects []T

	var cursor uint64
	for {
		cmd := s.valkey.B().Scan().Cursor(cursor).Match(s.key(objectType, "*")).Count(100).Build()

		entry, err := s.valkey.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("scanning keys: %w", err)
		}

		for _, key := range entry.Elements {
			bytes, err := s.valkey.Do(ctx, s.valkey.B().Get().Key(key).Build()).AsBytes()
			if err != nil {
				// the key may expire between the scan and the read
				if valkey.IsValkeyNil(err) {
					continue
				}

				return nil, fmt.Errorf("getting key: %w", err)
			}

			var object T
			if err := s.decode(bytes, &object); err != nil {
				return nil, err
			}
			objects = append(objects, object)
		}

		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}

	return objects, nil
}
