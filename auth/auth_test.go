package auth

import (
	"errors"
	"os/user"
	"testing"

	"github.com/jameskeane/bcrypt"
)

func TestMethodNamesOrder(t *testing.T) {
	m := MethodPassword | MethodPublicKey
	names := m.Names()
	if len(names) != 2 || names[0] != "password" || names[1] != "publickey" {
		t.Fatalf("got %v", names)
	}
}

func TestMethodRemove(t *testing.T) {
	m := AllMethods
	m = m.Remove(MethodPassword)
	if m.Has(MethodPassword) {
		t.Fatal("password method should have been removed")
	}
	if !m.Has(MethodPublicKey) {
		t.Fatal("publickey method should remain")
	}
}

func TestEncodeFailureListsRemainingMethods(t *testing.T) {
	req := NewRequest(MethodPublicKey)
	payload := EncodeFailure(req)
	if payload[0] != 51 {
		t.Fatalf("got message code %d, want 51", payload[0])
	}
}

func TestVerifyLocalPasswordUnknownUserRejected(t *testing.T) {
	ctx := &PasswordCtx{
		Reader:     func(string) ([]byte, error) { return []byte("gopher:somesalt:somehash\n"), nil },
		UserLookup: func(string) (*user.User, error) { return nil, errors.New("no such user") },
	}
	if VerifyLocalPassword(ctx, "nobody", "whatever", "") {
		t.Fatal("expected rejection for unknown user")
	}
}

func TestVerifyLocalPasswordCorrectHash(t *testing.T) {
	salt, err := bcrypt.Salt()
	if err != nil {
		t.Fatalf("bcrypt.Salt: %v", err)
	}
	hash, err := bcrypt.Hash("secret", salt)
	if err != nil {
		t.Fatalf("bcrypt.Hash: %v", err)
	}
	passwdFile := "gopher:" + salt + ":" + hash + "\n"

	ctx := &PasswordCtx{
		Reader:     func(string) ([]byte, error) { return []byte(passwdFile), nil },
		UserLookup: func(string) (*user.User, error) { return &user.User{Username: "gopher"}, nil },
	}
	if !VerifyLocalPassword(ctx, "gopher", "secret", "") {
		t.Fatal("expected acceptance for correct password")
	}
}

func TestVerifyLocalPasswordWrongPassword(t *testing.T) {
	salt, _ := bcrypt.Salt()
	hash, _ := bcrypt.Hash("secret", salt)
	passwdFile := "gopher:" + salt + ":" + hash + "\n"

	ctx := &PasswordCtx{
		Reader:     func(string) ([]byte, error) { return []byte(passwdFile), nil },
		UserLookup: func(string) (*user.User, error) { return &user.User{Username: "gopher"}, nil },
	}
	if VerifyLocalPassword(ctx, "gopher", "wrong", "") {
		t.Fatal("expected rejection for wrong password")
	}
}

func TestVerifyLocalPasswordRejectsWhenSystemLookupFails(t *testing.T) {
	salt, _ := bcrypt.Salt()
	hash, _ := bcrypt.Hash("secret", salt)
	passwdFile := "gopher:" + salt + ":" + hash + "\n"

	ctx := &PasswordCtx{
		Reader:     func(string) ([]byte, error) { return []byte(passwdFile), nil },
		UserLookup: func(string) (*user.User, error) { return nil, errors.New("no such user") },
	}
	if VerifyLocalPassword(ctx, "gopher", "secret", "") {
		t.Fatal("expected rejection when system user lookup fails")
	}
}
