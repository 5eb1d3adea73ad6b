package validation

import "testing"

func TestRequired(t *testing.T) {
	v := Violations{}
	Required("name", "  ", v)
	Required("email", "a@b.co", v)
	if v["name"] != "required" {
		t.Fatalf("expected required violation, got %v", v)
	}
	if _, ok := v["email"]; ok {
		t.Fatalf("email should pass")
	}
}

func TestEmail(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"alice@acme.com", true},
		{"", true}, // Required handles emptiness
		{"not-an-email", false},
		{"Alice <alice@acme.com>", false},
	}
	for _, tt := range tests {
		v := Violations{}
		Email("email", tt.value, v)
		if v.Empty() != tt.ok {
			t.Errorf("Email(%q) violations=%v, want ok=%v", tt.value, v, tt.ok)
		}
	}
}

func TestSlug(t *testing.T) {
	for value, ok := range map[string]bool{"acme-co": true, "acme2": true, "Acme": false, "acme co": false, "acme_co": false} {
		v := Violations{}
		Slug("company_slug", value, v)
		if v.Empty() != ok {
			t.Errorf("Slug(%q) ok=%v, want %v", value, v.Empty(), ok)
		}
	}
}

func TestAdd_KeepsFirstViolation(t *testing.T) {
	v := Violations{}
	Required("password", "", v)
	MinLength("password", "", 6, v)
	v.Add("password", "too_short")
	if v["password"] != "required" {
		t.Fatalf("first violation should win, got %s", v["password"])
	}
}

func TestOneOfAndDate(t *testing.T) {
	v := Violations{}
	OneOf("role", "owner", []string{"user", "manager", "admin"}, v)
	Date("due_date", "2024-02-30", v)
	Date("start_date", "2024-02-28", v)
	if v["role"] != "invalid_choice" || v["due_date"] != "invalid_date" {
		t.Fatalf("unexpected violations %v", v)
	}
	if _, ok := v["start_date"]; ok {
		t.Fatalf("valid date flagged")
	}
}
