package signature

import "testing"

func TestVerify_ValidSignature(t *testing.T) {
	v := NewVerifier("test-secret")
	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1"}}`)

	if !v.Verify(body, v.Sign(body)) {
		t.Fatalf("valid signature rejected")
	}
}

func TestVerify_AlteredBody(t *testing.T) {
	v := NewVerifier("test-secret")
	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1"}}`)
	header := v.Sign(body)

	// даже добавление пробела должно ломать подпись
	altered := append(append([]byte{}, body...), ' ')

	if v.Verify(altered, header) {
		t.Fatalf("altered body accepted")
	}
}

func TestVerify_MissingHeader(t *testing.T) {
	v := NewVerifier("test-secret")

	if v.Verify([]byte(`{}`), "") {
		t.Fatalf("empty header accepted")
	}
}

func TestVerify_MalformedHeader(t *testing.T) {
	v := NewVerifier("test-secret")

	if v.Verify([]byte(`{}`), "not-a-hex-string") {
		t.Fatalf("malformed header accepted")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)
	header := NewVerifier("other-secret").Sign(body)

	if NewVerifier("test-secret").Verify(body, header) {
		t.Fatalf("signature from another secret accepted")
	}
}
