package domain

// MintResult is the outcome of a confirmed minting transaction. It is either
// Minted or Unresolved; a transaction that never confirmed is reported as an
// error instead. Callers switch on the concrete type:
//
//	switch r := result.(type) {
//	case Minted:
//	case Unresolved:
//	}
type MintResult interface {
	// TransactionHash is the hex hash of the confirmed transaction.
	TransactionHash() string
	isMintResult()
}

// Minted is a confirmed mint whose token id was found in the StoryMinted event.
type Minted struct {
	TokenID string
	TxHash  string
}

func (m Minted) TransactionHash() string { return m.TxHash }
func (Minted) isMintResult()             {}

// Unresolved is a confirmed transaction whose StoryMinted event could not be
// located. The chain accepted the mint but the token id is unknown and needs
// manual follow-up using the transaction hash.
type Unresolved struct {
	TxHash string
}

func (u Unresolved) TransactionHash() string { return u.TxHash }
func (Unresolved) isMintResult()             {}
