package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccountValidateSymbolBounds(t *testing.T) {
	a := Account{Symbol: "", Address: "0xabc"}
	err := a.Validate(nil)
	require.Error(t, err)

	a.Symbol = "ETH"
	require.NoError(t, a.Validate(nil))
}

func TestAccountValidatePolicyExistence(t *testing.T) {
	missing := NewID()
	a := Account{Symbol: "ETH", Address: "0xabc", TransferRequestPolicyID: &missing}

	err := a.Validate(func(ID) bool { return false })
	require.Error(t, err)

	err = a.Validate(func(ID) bool { return true })
	require.NoError(t, err)
}

func TestUserValidateIdentityBounds(t *testing.T) {
	u := User{Status: UserStatusActive}
	require.Error(t, u.Validate(nil))

	u.Identities = []string{"pk1"}
	require.NoError(t, u.Validate(nil))

	u.Identities = append(u.Identities, "")
	require.Error(t, u.Validate(nil))
}
