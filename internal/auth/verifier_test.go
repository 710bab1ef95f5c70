package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func signHS256(t *testing.T, secret []byte, header, payload string) string {
	t.Helper()
	enc := base64.RawURLEncoding
	signingInput := enc.EncodeToString([]byte(header)) + "." + enc.EncodeToString([]byte(payload))
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(signingInput))
	return signingInput + "." + enc.EncodeToString(mac.Sum(nil))
}

func TestVerifyDevToken(t *testing.T) {
	v := &Verifier{Mode: "dev"}
	pr, err := v.Verify("ops-1:Operator")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if pr.Subject != "ops-1" || pr.Role != RoleOperator {
		t.Fatalf("principal: %+v", pr)
	}
	if _, err := v.Verify("garbage"); err == nil {
		t.Fatal("expected error for malformed dev token")
	}
}

func TestVerifyHMACToken(t *testing.T) {
	secret := []byte("shhh")
	v := &Verifier{Mode: "hmac", HMACSecret: secret, RoleClaim: "role", SubjectClaim: "sub"}

	tok := signHS256(t, secret, `{"alg":"HS256","typ":"JWT"}`, `{"sub":"u1","role":"Admin"}`)
	pr, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if pr.Subject != "u1" || !pr.IsAdmin() {
		t.Fatalf("principal: %+v", pr)
	}

	bad := signHS256(t, []byte("wrong"), `{"alg":"HS256","typ":"JWT"}`, `{"sub":"u1","role":"admin"}`)
	if _, err := v.Verify(bad); err == nil {
		t.Fatal("expected bad signature error")
	}
}

func TestVerifyDefaultsRoleToViewer(t *testing.T) {
	secret := []byte("shhh")
	v := &Verifier{Mode: "hmac", HMACSecret: secret, RoleClaim: "role", SubjectClaim: "sub"}
	tok := signHS256(t, secret, `{"alg":"HS256","typ":"JWT"}`, `{"sub":"u2"}`)
	pr, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if pr.Role != RoleViewer {
		t.Fatalf("role: %q", pr.Role)
	}
}
