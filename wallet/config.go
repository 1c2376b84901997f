package wallet

import (
	"time"

	"github.com/oktaviaorg/subnavis/vault"
)

// Features toggles the optional ceremonies around key custody.
// BiometricGating only controls whether enrolment is offered; a credential
// that is already enabled is always enforced.
type Features struct {
	BiometricGating    bool `json:"biometricGating"`
	BackupVerification bool `json:"backupVerification"`
}

// Config holds controller settings.
type Config struct {
	Network        vault.Network
	WordCount      int           // default phrase length for new wallets
	ChallengeSize  int           // words re-typed during backup verification
	BackupAttempts int           // prompts before an unverified backup is abandoned
	RevealTTL      time.Duration // lifetime of a revealed phrase
	Features       Features
	Policy         PasswordPolicy
	Attempts       RateLimitConfig
	JanitorEvery   time.Duration // biometric challenge purge interval
}

// DefaultConfig returns settings for Bittensor mainnet with every feature on.
func DefaultConfig() Config {
	return Config{
		Network:        vault.Bittensor,
		WordCount:      vault.Words24,
		ChallengeSize:  vault.DefaultChallengeSize,
		BackupAttempts: 3,
		RevealTTL:      vault.DefaultRevealTTL,
		Features:       Features{BiometricGating: true, BackupVerification: true},
		Policy:         DefaultPasswordPolicy(),
		Attempts:       DefaultRateLimitConfig(),
		JanitorEvery:   time.Minute,
	}
}
