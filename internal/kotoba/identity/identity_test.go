package identity

import "testing"

func TestAuthenticated(t *testing.T) {
	if Anonymous.Authenticated() {
		t.Fatal("anonymous identity reported as authenticated")
	}
	if !(Identity{UserID: "@ava:example.org"}).Authenticated() {
		t.Fatal("identity with user id reported as anonymous")
	}
}
