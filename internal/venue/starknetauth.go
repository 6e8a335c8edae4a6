// starknetauth.go authenticates REST requests against the venue and
// validates an account's optional L1 address.
//
// Per spec.md §1/§9, STARK order signing is an external collaborator: the
// venue SDK (not this adapter) owns the STARK keypair and signs orders.
// This file only covers two things squarely inside the adapter's own
// responsibility:
//   - HMAC request signing for the REST API, grounded on the teacher's L2
//     HMAC scheme (timestamp + method + path [+ body]).
//   - L1Address validation via Keccak256/checksum, used solely for
//     deposit/withdrawal display and config validation — it never touches
//     order signing.
package venue

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"gridbot/internal/venueerr"
)

// starkAuth signs REST requests with the account's API key/secret pair.
// The name reflects the venue family (Starknet-based perpetual venue); it
// does not perform STARK curve signing itself.
type starkAuth struct {
	apiKey    string
	secretKey string
}

func newStarkAuth(apiKey, secretKey string) *starkAuth {
	return &starkAuth{apiKey: apiKey, secretKey: secretKey}
}

// signedHeaders computes timestamp + HMAC-SHA256(method+path+body) headers.
func (a *starkAuth) signedHeaders(method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	secretBytes, err := base64.StdEncoding.DecodeString(a.secretKey)
	if err != nil {
		secretBytes = []byte(a.secretKey)
	}

	message := timestamp + method + path + body
	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"X-API-KEY":   a.apiKey,
		"X-TIMESTAMP": timestamp,
		"X-SIGNATURE": sig,
	}, nil
}

// ValidateL1Address checks that addr is a well-formed, checksummed Ethereum
// address, returning the canonical checksummed form. Used only when an
// account record carries an optional L1Address for deposit/withdrawal
// display (spec.md §3); it plays no role in order signing.
func ValidateL1Address(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", venueerr.Configuration("validate_l1_address", "l1_address", "not a valid hex address")
	}
	return common.HexToAddress(addr).Hex(), nil
}

// fingerprint returns a short Keccak256-derived hex tag for an API key,
// so a log line can identify a key without printing it (spec.md §9
// ambient logging concerns). No log line in this package calls it.
func fingerprint(secret string) string {
	h := crypto.Keccak256([]byte(secret))
	return hex.EncodeToString(h[:4])
}
