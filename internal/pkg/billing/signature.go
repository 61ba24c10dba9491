package billing

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"
)

// Algorithm names an accepted HMAC construction.
type Algorithm string

const (
	AlgorithmSHA256 Algorithm = "hmac-sha256"
	AlgorithmSHA1   Algorithm = "hmac-sha1"
)

// SupportedAlgorithms lists the algorithms tried, in order.
var SupportedAlgorithms = []Algorithm{AlgorithmSHA256, AlgorithmSHA1}

func (a Algorithm) hashFunc() func() hash.Hash {
	if a == AlgorithmSHA1 {
		return sha1.New
	}
	return sha256.New
}

// VerifySignature checks a hex encoded HMAC of the canonical payload. It
// reports which algorithm matched; an empty or non-hex signature never does.
// A leading "sha256=" or "sha1=" label is tolerated.
func VerifySignature(canonical []byte, signature, secret string) (Algorithm, bool) {
	sig := strings.ToLower(strings.TrimSpace(signature))
	key := strings.TrimSpace(secret)
	if sig == "" || key == "" {
		return "", false
	}
	if i := strings.IndexByte(sig, '='); i > 0 {
		sig = sig[i+1:]
	}

	decodedSig, err := hex.DecodeString(sig)
	if err != nil || len(decodedSig) == 0 {
		return "", false
	}

	for _, alg := range SupportedAlgorithms {
		if verifyHMAC(canonical, decodedSig, []byte(key), alg.hashFunc()) {
			return alg, true
		}
	}
	return "", false
}

// Sign returns the lower-case hex HMAC of payload.
func Sign(payload []byte, secret string, alg Algorithm) string {
	mac := hmac.New(alg.hashFunc(), []byte(strings.TrimSpace(secret)))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyHMAC(payload, expectedSig, secret []byte, hashFunc func() hash.Hash) bool {
	mac := hmac.New(hashFunc, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expectedSig)
}
