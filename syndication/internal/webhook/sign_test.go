package webhook

import "testing"

func TestSignVerify(t *testing.T) {
	body := []byte(`{"event":"post.published","post_id":"p1"}`)
	sig := Sign(body, "s3cret")

	if sig[:7] != "sha256=" {
		t.Fatalf("signature missing scheme prefix: %q", sig)
	}
	if !Verify(body, "s3cret", sig) {
		t.Fatal("valid signature rejected")
	}
	if Verify(body, "wrong", sig) {
		t.Fatal("signature accepted with the wrong secret")
	}
	if Verify([]byte(`{"tampered":true}`), "s3cret", sig) {
		t.Fatal("signature accepted over a tampered body")
	}
	if Verify(body, "s3cret", "sha256=deadbeef") {
		t.Fatal("garbage signature accepted")
	}
}

func TestSignDeterministic(t *testing.T) {
	body := []byte("payload")
	if Sign(body, "k") != Sign(body, "k") {
		t.Fatal("signature not deterministic")
	}
	if Sign(body, "k1") == Sign(body, "k2") {
		t.Fatal("different secrets produced the same signature")
	}
}
