package enums

import "fmt"

// WalletStatus gates whether a wallet accepts ledger operations.
type WalletStatus string

const (
	WalletStatusActive   WalletStatus = "active"
	WalletStatusInactive WalletStatus = "inactive"
)

var validWalletStatuses = []WalletStatus{
	WalletStatusActive,
	WalletStatusInactive,
}

// String implements fmt.Stringer.
func (s WalletStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known WalletStatus.
func (s WalletStatus) IsValid() bool {
	for _, candidate := range validWalletStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseWalletStatus converts raw input into a WalletStatus.
func ParseWalletStatus(value string) (WalletStatus, error) {
	for _, candidate := range validWalletStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet status %q", value)
}
