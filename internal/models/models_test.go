package models

import (
	"testing"
	"time"
)

func TestCredential(t *testing.T) {
	t.Run("Stale", func(t *testing.T) {
		expiry := time.UnixMilli(1_700_000_000_000)
		cred := &Credential{ExpiresAt: expiry.UnixMilli()}

		if cred.Stale(expiry.Add(-time.Millisecond)) {
			t.Error("credential should be fresh one millisecond before expiry")
		}
		if !cred.Stale(expiry) {
			t.Error("credential should be stale exactly at expiry")
		}
		if !cred.Stale(expiry.Add(time.Second)) {
			t.Error("credential should be stale after expiry")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		valid := &Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: 1}
		if err := valid.Validate(); err != nil {
			t.Errorf("expected valid credential, got %v", err)
		}

		for name, cred := range map[string]*Credential{
			"missing access":  {RefreshToken: "r", ExpiresAt: 1},
			"missing refresh": {AccessToken: "a", ExpiresAt: 1},
			"missing expiry":  {AccessToken: "a", RefreshToken: "r"},
		} {
			if err := cred.Validate(); err == nil {
				t.Errorf("%s: expected validation error", name)
			}
		}
	})
}

func TestDevice_Linked(t *testing.T) {
	id := "cred-1"
	empty := ""

	if (&Device{}).Linked() {
		t.Error("device without credential should be unlinked")
	}
	if (&Device{CredentialID: &empty}).Linked() {
		t.Error("device with empty credential id should be unlinked")
	}
	if !(&Device{CredentialID: &id}).Linked() {
		t.Error("device with credential id should be linked")
	}
}
