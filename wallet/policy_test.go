package wallet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oktaviaorg/subnavis/vault"
)

func TestPasswordPolicy(t *testing.T) {
	p := DefaultPasswordPolicy()
	tests := []struct {
		password string
		msg      string
	}{
		{strongPassword, ""},
		{"Sh0rt!", "must be at least 12 characters"},
		{"str0ng!passw0rd", "must contain an uppercase letter"},
		{"STR0NG!PASSW0RD", "must contain a lowercase letter"},
		{"Strong!Password", "must contain a digit"},
		{"Str0ngPassw0rd", "must contain a special character"},
		{"Abcdefghijk1 ", "must contain a special character"},
		{"Abcdefghijk1\t", "must contain a special character"},
		{"Pässwörd 123!", ""},
		{"Abcdefghijk1€", ""},
		{"Ünïcödé1!äöü", ""},
		{string([]byte{0xff, 0xfe}), "must be valid UTF-8"},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := p.Check([]byte(tt.password))
			if tt.msg == "" {
				require.NoError(t, err)
				return
			}
			var ve *vault.ValidationError
			require.ErrorAs(t, err, &ve)
			require.Equal(t, "password", ve.Field)
			require.Equal(t, tt.msg, ve.Msg)
		})
	}
}

func TestPasswordPolicyRelaxed(t *testing.T) {
	p := PasswordPolicy{MinLength: 4}
	require.NoError(t, p.Check([]byte("abcd")))
	require.Error(t, p.Check([]byte("abc")))
}
