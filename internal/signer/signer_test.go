package signer

import "testing"

func TestSoftwareSignAndVerify(t *testing.T) {
	s, err := NewSoftware()
	if err != nil {
		t.Fatalf("NewSoftware: %v", err)
	}
	payload := []byte("self-custody candidate bytes")

	sig, err := s.Sign(payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !Verify(s.PublicKey(), payload, sig) {
		t.Fatal("expected signature to verify")
	}
	if Verify(s.PublicKey(), []byte("tampered"), sig) {
		t.Fatal("expected signature over different payload to fail")
	}
}

func TestNewSoftwareFromSeedRoundTrips(t *testing.T) {
	original, err := NewSoftware()
	if err != nil {
		t.Fatalf("NewSoftware: %v", err)
	}
	rebuilt, err := NewSoftwareFromSeed(original.Seed())
	if err != nil {
		t.Fatalf("NewSoftwareFromSeed: %v", err)
	}
	if !rebuilt.PublicKey().Equal(original.PublicKey()) {
		t.Fatal("expected rebuilt signer to share the original public key")
	}

	payload := []byte("capture log")
	sig, err := original.Sign(payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !Verify(rebuilt.PublicKey(), payload, sig) {
		t.Fatal("expected rebuilt public key to verify the original signature")
	}
}

func TestNewSoftwareFromSeedRejectsWrongLength(t *testing.T) {
	if _, err := NewSoftwareFromSeed([]byte("too short")); err == nil {
		t.Fatal("expected error for undersized seed")
	}
}
