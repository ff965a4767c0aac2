package s0_data

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/wonny/phwatch/pkg/redis"
)

// BoardReader reads the live board of tradable contracts from Redis.
// The board is a JSON object keyed by contract id, stored either as a
// RedisJSON document or a plain string; hashes and sets are also accepted.
// ⭐ SSOT: implements contracts.ActiveContractSource
type BoardReader struct {
	client *redis.Client
	key    string
}

// NewBoardReader creates a reader for the given board key
func NewBoardReader(client *redis.Client, key string) *BoardReader {
	return &BoardReader{client: client, key: key}
}

// FetchActiveContracts returns the board's contract ids, sorted ascending
func (b *BoardReader) FetchActiveContracts(ctx context.Context) ([]string, error) {
	if !b.client.Enabled() {
		return nil, fmt.Errorf("redis disabled, board %q unavailable", b.key)
	}
	rdb := b.client.Redis()

	keyType, err := rdb.Type(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read board type: %w", err)
	}

	var ids []string
	switch keyType {
	case "none":
		return []string{}, nil
	case "ReJSON-RL":
		raw, err := rdb.Do(ctx, "JSON.GET", b.key, ".").Text()
		if err != nil {
			return nil, fmt.Errorf("failed to read board document: %w", err)
		}
		ids, err = boardKeys([]byte(raw))
		if err != nil {
			return nil, err
		}
	case "string":
		raw, err := rdb.Get(ctx, b.key).Bytes()
		if err != nil {
			return nil, fmt.Errorf("failed to read board string: %w", err)
		}
		ids, err = boardKeys(raw)
		if err != nil {
			return nil, err
		}
	case "hash":
		ids, err = rdb.HKeys(ctx, b.key).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read board hash: %w", err)
		}
	case "set":
		ids, err = rdb.SMembers(ctx, b.key).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read board set: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported board type %q", keyType)
	}

	sort.Strings(ids)
	return ids, nil
}

// boardKeys accepts a JSON object (keys are contracts) or a JSON array of ids
func boardKeys(raw []byte) ([]string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		ids := make([]string, 0, len(obj))
		for id := range obj {
			ids = append(ids, id)
		}
		return ids, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("board is neither an object nor a list: %w", err)
	}
	return list, nil
}
