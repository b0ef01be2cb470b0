package common

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// Wallet is a freshly generated custodial account: the mnemonic is stored for
// the user, the address is the ledger account key.
type Wallet struct {
	Mnemonic string
	Address  string
}

// GenerateWallet creates a 12-word mnemonic and derives its address.
func GenerateWallet() (*Wallet, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return nil, fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	address, err := AddressFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}

	return &Wallet{Mnemonic: mnemonic, Address: address}, nil
}

// AddressFromMnemonic deterministically derives the account address from a
// mnemonic. The first 32 bytes of the BIP-39 seed are used as the private key.
func AddressFromMnemonic(mnemonic string) (string, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return "", fmt.Errorf("invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, "")
	privateKey, err := crypto.ToECDSA(seed[:32])
	if err != nil {
		return "", fmt.Errorf("failed to derive private key: %w", err)
	}

	return crypto.PubkeyToAddress(privateKey.PublicKey).Hex(), nil
}
