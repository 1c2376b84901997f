package vault

import (
	"crypto/sha512"
	"fmt"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"
)

// signingContext is the Substrate sr25519 signing context.
var signingContext = []byte("substrate")

// Keypair is an sr25519 account key derived from a mnemonic. It holds secret
// material and should be dropped as soon as the caller is done with it.
type Keypair struct {
	secret *schnorrkel.SecretKey
	public [32]byte
}

// KeypairFromMnemonic derives the account key the way Substrate wallets do:
// PBKDF2-HMAC-SHA512 over the phrase's BIP39 entropy (salt "mnemonic", 2048
// rounds) gives a 32-byte mini secret, expanded in ed25519 mode.
func KeypairFromMnemonic(phrase string) (*Keypair, error) {
	norm, err := ParseMnemonic(phrase)
	if err != nil {
		return nil, err
	}
	entropy, err := bip39.EntropyFromMnemonic(norm)
	if err != nil {
		return nil, fmt.Errorf("mnemonic entropy: %w", err)
	}
	defer Wipe(entropy)

	seed := pbkdf2.Key(entropy, []byte("mnemonic"), 2048, 64, sha512.New)
	defer Wipe(seed)

	var mini [32]byte
	copy(mini[:], seed[:32])
	defer Wipe(mini[:])

	msk, err := schnorrkel.NewMiniSecretKeyFromRaw(mini)
	if err != nil {
		return nil, fmt.Errorf("mini secret: %w", err)
	}
	return &Keypair{
		secret: msk.ExpandEd25519(),
		public: msk.Public().Encode(),
	}, nil
}

// PublicKey returns the raw 32-byte sr25519 public key.
func (k *Keypair) PublicKey() [32]byte { return k.public }

// Address returns the SS58 address for n.
func (k *Keypair) Address(n Network) string { return n.EncodeAddress(k.public) }

// Sign produces an sr25519 signature over msg.
func (k *Keypair) Sign(msg []byte) ([64]byte, error) {
	sig, err := k.secret.Sign(schnorrkel.NewSigningContext(signingContext, msg))
	if err != nil {
		return [64]byte{}, fmt.Errorf("sign: %w", err)
	}
	return sig.Encode(), nil
}

// Verify checks an sr25519 signature made by Keypair.Sign.
func Verify(pub [32]byte, msg []byte, sig [64]byte) bool {
	pk := &schnorrkel.PublicKey{}
	if err := pk.Decode(pub); err != nil {
		return false
	}
	s := &schnorrkel.Signature{}
	if err := s.Decode(sig); err != nil {
		return false
	}
	ok, err := pk.Verify(s, schnorrkel.NewSigningContext(signingContext, msg))
	return err == nil && ok
}

// DeriveAddress returns the address phrase controls on n. It is pure: the same
// phrase always yields the same address.
func DeriveAddress(phrase string, n Network) (string, error) {
	kp, err := KeypairFromMnemonic(phrase)
	if err != nil {
		return "", err
	}
	return kp.Address(n), nil
}
