package sealer

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	dErrors "attesto/pkg/domain-errors"
)

// KeyExtractor derives a holder's encryption public key from the holder DID.
type KeyExtractor func(did string) ([]byte, error)

// FourthSegmentKey reads the key from the fourth colon-delimited DID segment, as in
// did:method:network:<key>. The segment is hex (0x prefix optional) or base58 and
// must decode to exactly 32 bytes.
//
// The layout is an assumption about how holder DIDs are minted; deployments with a
// different DID method plug in their own KeyExtractor.
func FourthSegmentKey(did string) ([]byte, error) {
	parts := strings.Split(did, ":")
	if len(parts) < 4 || parts[0] != "did" || parts[3] == "" {
		return nil, dErrors.New(dErrors.CodeEncryptionFailed, "holder did has no key segment")
	}
	key, err := decodeKey(parts[3])
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeEncryptionFailed, "holder did key segment is not a valid key")
	}
	if len(key) != KeySize {
		return nil, dErrors.New(dErrors.CodeEncryptionFailed,
			fmt.Sprintf("holder did key must be %d bytes, got %d", KeySize, len(key)))
	}
	return key, nil
}

func decodeKey(segment string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(segment, "0x"); ok {
		return hex.DecodeString(rest)
	}
	if len(segment) == hex.EncodedLen(KeySize) {
		if key, err := hex.DecodeString(segment); err == nil {
			return key, nil
		}
	}
	return base58.Decode(segment)
}
