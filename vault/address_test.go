package vault

import (
	"encoding/hex"
	"testing"
)

func TestEncodeAddressKnownVector(t *testing.T) {
	raw, err := hex.DecodeString("d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d")
	if err != nil {
		t.Fatal(err)
	}
	var pub [32]byte
	copy(pub[:], raw)

	const want = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	if got := Bittensor.EncodeAddress(pub); got != want {
		t.Fatalf("EncodeAddress = %s, want %s", got, want)
	}
	back, err := Bittensor.DecodeAddress(want)
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	if back != pub {
		t.Fatalf("decoded key mismatch")
	}
}

func TestValidateAddress(t *testing.T) {
	good := "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	cases := map[string]bool{
		good:                     true,
		" " + good + " ":         true,
		"":                       false,
		"5Grwva":                 false,
		"1" + good[1:]:           false,
		good[:len(good)-1] + "Z": false,
	}
	for addr, want := range cases {
		if got := Bittensor.ValidAddress(addr); got != want {
			t.Errorf("ValidAddress(%q) = %v, want %v", addr, got, want)
		}
	}
}

func TestTwoBytePrefixRoundTrip(t *testing.T) {
	n := Network{Name: "test", SS58Prefix: 1234, AddressPrefix: "", MinAddressLen: 1}
	var pub [32]byte
	for i := range pub {
		pub[i] = byte(i)
	}
	addr := n.EncodeAddress(pub)
	back, err := n.DecodeAddress(addr)
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	if back != pub {
		t.Fatalf("round trip mismatch")
	}
	if _, err := Bittensor.DecodeAddress(addr); err == nil {
		t.Fatalf("address for another network accepted")
	}
}
