package util

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const alicePrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func Test_DeriveAddressFromECDSAPrivateKeyString(t *testing.T) {
	t.Run("Hardhat account zero", func(t *testing.T) {
		addr, err := DeriveAddressFromECDSAPrivateKeyString(alicePrivateKey)
		require.NoError(t, err)
		require.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), addr)
	})

	t.Run("Prefix is optional", func(t *testing.T) {
		addr, err := DeriveAddressFromECDSAPrivateKeyString(alicePrivateKey[2:])
		require.NoError(t, err)
		require.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), addr)
	})

	t.Run("Invalid key", func(t *testing.T) {
		_, err := DeriveAddressFromECDSAPrivateKeyString("0xnothex")
		require.Error(t, err)
	})

	t.Run("Nil key", func(t *testing.T) {
		_, err := DeriveAddressFromECDSAPrivateKey(nil)
		require.Error(t, err)
	})
}

func Test_ShortAddress(t *testing.T) {
	addr := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	require.Equal(t, "0x5FbD...0aa3", ShortAddress(addr))
}
