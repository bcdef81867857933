package enums

import "fmt"

// BankAccountType distinguishes the supported Indian bank account kinds.
type BankAccountType string

const (
	BankAccountTypeSavings BankAccountType = "savings"
	BankAccountTypeCurrent BankAccountType = "current"
)

var validBankAccountTypes = []BankAccountType{
	BankAccountTypeSavings,
	BankAccountTypeCurrent,
}

// String implements fmt.Stringer.
func (b BankAccountType) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BankAccountType.
func (b BankAccountType) IsValid() bool {
	for _, candidate := range validBankAccountTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBankAccountType converts raw input into a BankAccountType.
func ParseBankAccountType(value string) (BankAccountType, error) {
	for _, candidate := range validBankAccountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bank account type %q", value)
}
