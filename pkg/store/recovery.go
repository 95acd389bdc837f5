package store

import "strings"

// Token slots used by the two-factor features. The values match the layout
// written by other implementations of the same collections.
const (
	InternalLoginProvider     = "[AspNetUserStore]"
	AuthenticatorKeyTokenName = "AuthenticatorKey"
	RecoveryCodeTokenName     = "RecoveryCodes"
)

const recoveryCodeSeparator = ";"

// JoinRecoveryCodes encodes codes as a single blob.
func JoinRecoveryCodes(codes []string) string {
	return strings.Join(codes, recoveryCodeSeparator)
}

// SplitRecoveryCodes decodes a blob. An empty blob holds no codes.
func SplitRecoveryCodes(blob string) []string {
	if blob == "" {
		return nil
	}
	return strings.Split(blob, recoveryCodeSeparator)
}

// RedeemRecoveryCode removes the first exact match of code from blob.
// It returns the new blob and whether a code was removed.
func RedeemRecoveryCode(blob, code string) (string, bool) {
	if code == "" {
		return blob, false
	}
	codes := SplitRecoveryCodes(blob)
	for i, c := range codes {
		if c == code {
			codes = append(codes[:i], codes[i+1:]...)
			return JoinRecoveryCodes(codes), true
		}
	}
	return blob, false
}
