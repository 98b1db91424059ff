package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	id "landregistry/pkg/domain"
)

// verificationCodeLength is the length of the public verification token.
const verificationCodeLength = 12

// codeAlphabet avoids characters that are easy to misread on paper (0/O, 1/I/L).
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// certificateNumber composes a deterministic, collision-resistant number from
// the issuance instant and the parcel identity. Two certificates can only
// collide if issued for the same parcel in the same nanosecond.
func certificateNumber(issuedAt time.Time, parcelID id.ParcelID) string {
	raw := uuid.UUID(parcelID)
	parcelFragment := strings.ToUpper(hex.EncodeToString(raw[:4]))
	return fmt.Sprintf("LRC-%s-%s-%09d",
		issuedAt.UTC().Format("20060102"),
		parcelFragment,
		issuedAt.UTC().UnixNano()%1_000_000_000,
	)
}

// verificationCode draws a fixed-length random token, distinct from the
// certificate number by construction (different alphabet and shape).
func verificationCode() (string, error) {
	buf := make([]byte, verificationCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	code := make([]byte, verificationCodeLength)
	for i, b := range buf {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code), nil
}

// integrityHash digests the canonical certificate content with SHA3-256.
func integrityHash(canonical string) string {
	sum := sha3.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
