package user

import "testing"

func TestParseRole(t *testing.T) {
	ok := map[string]Role{"sponsor": RoleSponsor, " Influencer ": RoleInfluencer, "ADMIN": RoleAdmin}
	for in, want := range ok {
		got, err := ParseRole(in)
		if err != nil {
			t.Fatalf("expected valid role %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q) = %q, want %q", in, got, want)
		}
	}
	bad := []string{"", "system", "operator", "sponsors"}
	for _, v := range bad {
		if _, err := ParseRole(v); err == nil {
			t.Fatalf("expected invalid role %q", v)
		}
	}
}

func TestCanSponsor(t *testing.T) {
	approved := true
	rejected := false

	if !(&User{Role: RoleSponsor, Active: true, SponsorApproved: &approved}).CanSponsor() {
		t.Fatalf("expected approved active sponsor to sponsor")
	}
	if (&User{Role: RoleSponsor, Active: true}).CanSponsor() {
		t.Fatalf("expected sponsor awaiting approval to be refused")
	}
	if (&User{Role: RoleSponsor, Active: true, SponsorApproved: &rejected}).CanSponsor() {
		t.Fatalf("expected rejected sponsor to be refused")
	}
	if (&User{Role: RoleSponsor, Active: false, SponsorApproved: &approved}).CanSponsor() {
		t.Fatalf("expected inactive sponsor to be refused")
	}
	if (&User{Role: RoleInfluencer, Active: true, SponsorApproved: &approved}).CanSponsor() {
		t.Fatalf("expected influencer to be refused")
	}
}

func TestCanInfluence(t *testing.T) {
	if !(&User{Role: RoleInfluencer, Active: true}).CanInfluence() {
		t.Fatalf("expected active influencer")
	}
	if (&User{Role: RoleInfluencer}).CanInfluence() {
		t.Fatalf("expected inactive influencer to be refused")
	}
	var nilUser *User
	if nilUser.CanInfluence() {
		t.Fatalf("expected nil user to be refused")
	}
}
