package torrent

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"

	"github.com/mescon/Cachearr/internal/domain"
)

// ErrMissingInfo is returned when a torrent has no usable info dictionary.
var ErrMissingInfo = errors.New("torrent has no info dictionary")

// ComputeInfoHash reads the torrent at path and returns the SHA-1 of its
// re-encoded info dictionary.
func ComputeInfoHash(path string) (domain.InfoHash, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read torrent: %w", err)
	}
	return InfoHashFromBytes(data)
}

// InfoHashFromBytes is ComputeInfoHash over an in-memory torrent.
func InfoHashFromBytes(data []byte) (domain.InfoHash, error) {
	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode torrent: %w", err)
	}
	if len(mi.InfoBytes) == 0 {
		return "", ErrMissingInfo
	}

	var info map[string]interface{}
	if err := bencode.Unmarshal(mi.InfoBytes, &info); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingInfo, err)
	}
	if info == nil {
		return "", ErrMissingInfo
	}

	encoded, err := bencode.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("failed to re-encode info dictionary: %w", err)
	}

	hash, ok := domain.ParseInfoHash(metainfo.HashBytes(encoded).HexString())
	if !ok {
		return "", fmt.Errorf("computed malformed info hash %q", hash)
	}
	return hash, nil
}
