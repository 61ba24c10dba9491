package billing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignatureAcceptsBothAlgorithms(t *testing.T) {
	payload := []byte(`{"event_type":"order_approved","data":{"order_id":"1"}}`)
	secret := "whsec_test"

	for _, alg := range SupportedAlgorithms {
		sig := Sign(payload, secret, alg)

		got, ok := VerifySignature(payload, sig, secret)
		assert.True(t, ok, "%s lower-case", alg)
		assert.Equal(t, alg, got)

		_, ok = VerifySignature(payload, strings.ToUpper(sig), secret)
		assert.True(t, ok, "%s upper-case", alg)

		_, ok = VerifySignature(payload, "  "+sig+"\n", secret)
		assert.True(t, ok, "%s surrounding whitespace", alg)
	}

	_, ok := VerifySignature(payload, "sha256="+Sign(payload, secret, AlgorithmSHA256), secret)
	assert.True(t, ok, "labelled signature")
}

func TestVerifySignatureRejects(t *testing.T) {
	payload := []byte(`{"event_type":"order_approved"}`)
	secret := "whsec_test"
	good := Sign(payload, secret, AlgorithmSHA256)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		secret    string
	}{
		{name: "other secret sha256", payload: payload, signature: Sign(payload, "other", AlgorithmSHA256), secret: secret},
		{name: "other secret sha1", payload: payload, signature: Sign(payload, "other", AlgorithmSHA1), secret: secret},
		{name: "tampered payload", payload: []byte(`{"event_type":"order_refunded"}`), signature: good, secret: secret},
		{name: "empty signature", payload: payload, signature: "", secret: secret},
		{name: "empty secret", payload: payload, signature: good, secret: ""},
		{name: "non hex", payload: payload, signature: "not-hex-at-all", secret: secret},
		{name: "truncated", payload: payload, signature: good[:20], secret: secret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alg, ok := VerifySignature(tt.payload, tt.signature, tt.secret)
			assert.False(t, ok)
			assert.Empty(t, alg)
		})
	}
}
