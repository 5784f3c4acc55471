package petconnect

import (
	"fmt"
)

var (
	ErrNoClient          = fmt.Errorf("no client available")
	ErrNoWallet          = fmt.Errorf("no wallet available")
	ErrWalletLocked      = fmt.Errorf("private key wallet is locked")
	ErrWalletNotSetUp    = fmt.Errorf("private key wallet has no keys")
	ErrWalletNotReady    = fmt.Errorf("private key wallet did not become ready")
	ErrNotConnected      = fmt.Errorf("external wallet is not connected")
	ErrNetworkMismatch   = fmt.Errorf("network mismatch")
	ErrMalformedResponse = fmt.Errorf("malformed collaborator response")
	ErrUnknownContract   = fmt.Errorf("unknown contract")
	ErrNoAddressBook     = fmt.Errorf("contract address book not configured")
	ErrInvalidNetwork    = fmt.Errorf("invalid network")
)
