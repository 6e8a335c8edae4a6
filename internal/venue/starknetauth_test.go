package venue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignedHeadersIsDeterministicForSameTimestamp(t *testing.T) {
	auth := newStarkAuth("key-1", "c2VjcmV0") // base64("secret")

	h1, err := auth.signedHeaders("GET", "/balance", "")
	require.NoError(t, err)
	h2, err := auth.signedHeaders("GET", "/balance", "")
	require.NoError(t, err)

	require.Equal(t, h1["X-API-KEY"], h2["X-API-KEY"])
	require.Equal(t, "key-1", h1["X-API-KEY"])
	require.NotEmpty(t, h1["X-SIGNATURE"])
	require.NotEmpty(t, h1["X-TIMESTAMP"])
	if h1["X-TIMESTAMP"] == h2["X-TIMESTAMP"] {
		require.Equal(t, h1["X-SIGNATURE"], h2["X-SIGNATURE"])
	}
}

func TestSignedHeadersChangesWithPathAndBody(t *testing.T) {
	auth := newStarkAuth("key-1", "c2VjcmV0")

	balance, err := auth.signedHeaders("GET", "/balance", "")
	require.NoError(t, err)
	order, err := auth.signedHeaders("POST", "/order", `{"symbol":"BTC-USD"}`)
	require.NoError(t, err)

	require.NotEqual(t, balance["X-SIGNATURE"], order["X-SIGNATURE"])
}

func TestSignedHeadersAcceptsNonBase64Secret(t *testing.T) {
	auth := newStarkAuth("key-1", "not-base64-!!!")

	headers, err := auth.signedHeaders("GET", "/ticker", "")
	require.NoError(t, err)
	require.NotEmpty(t, headers["X-SIGNATURE"])
}

func TestValidateL1AddressChecksums(t *testing.T) {
	checksummed, err := ValidateL1Address("0x5aeda56215b167893e80b4fe645ba6d5bab767de")
	require.NoError(t, err)
	require.Len(t, checksummed, 42)
	require.True(t, checksummed[:2] == "0x")

	// idempotent: validating the checksummed form returns the same address
	again, err := ValidateL1Address(checksummed)
	require.NoError(t, err)
	require.Equal(t, checksummed, again)
}

func TestValidateL1AddressRejectsMalformed(t *testing.T) {
	_, err := ValidateL1Address("not-an-address")
	require.Error(t, err)
}

func TestValidateL1AddressRejectsEmpty(t *testing.T) {
	_, err := ValidateL1Address("")
	require.Error(t, err)
}

func TestFingerprintIsStableAndShort(t *testing.T) {
	f1 := fingerprint("super-secret-key")
	f2 := fingerprint("super-secret-key")
	f3 := fingerprint("different-key")

	require.Equal(t, f1, f2)
	require.NotEqual(t, f1, f3)
	require.Len(t, f1, 8) // 4 bytes, hex-encoded
}
