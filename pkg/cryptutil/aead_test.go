package cryptutil

import "testing"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	box, err := NewBox("app-secret-value")
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	cipher, err := box.Encrypt([]byte("node-shared-secret-123"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if cipher == "node-shared-secret-123" {
		t.Fatalf("ciphertext must not equal plaintext")
	}
	plain, err := box.Decrypt(cipher)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(plain) != "node-shared-secret-123" {
		t.Fatalf("got %q", plain)
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	box1, _ := NewBox("secret-a")
	box2, _ := NewBox("secret-b")
	cipher, err := box1.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := box2.Decrypt(cipher); err == nil {
		t.Fatalf("expected decrypt under different key to fail")
	}
}

func TestEncryptProducesDistinctCiphertextsForSamePlaintext(t *testing.T) {
	box, _ := NewBox("secret")
	a, err := box.Encrypt([]byte("same"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := box.Encrypt([]byte("same"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct nonces to produce distinct ciphertexts")
	}
}
