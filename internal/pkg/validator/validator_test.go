package validator

import "testing"

type reviewForm struct {
	Decision string `json:"decision" validate:"required,decision"`
	Amount   int64  `json:"amount_krw" validate:"gt=0"`
}

func TestValidateUsesJSONFieldNames(t *testing.T) {
	errs := Validate(&reviewForm{Decision: "", Amount: 0})
	if errs == nil {
		t.Fatal("expected validation errors")
	}
	if _, ok := errs["decision"]; !ok {
		t.Fatalf("expected decision error keyed by json tag, got %v", errs)
	}
	if _, ok := errs["amount_krw"]; !ok {
		t.Fatalf("expected amount_krw error keyed by json tag, got %v", errs)
	}
}

func TestDecisionTag(t *testing.T) {
	valid := []string{"approved", "rejected", "manual_review"}
	for _, d := range valid {
		if errs := Validate(&reviewForm{Decision: d, Amount: 100}); errs != nil {
			t.Errorf("expected %q to be valid, got %v", d, errs)
		}
	}
	if errs := Validate(&reviewForm{Decision: "maybe", Amount: 100}); errs == nil {
		t.Fatal("expected unknown decision to be rejected")
	}
}

func TestRoleTag(t *testing.T) {
	type form struct {
		Role string `json:"role" validate:"role"`
	}
	for _, r := range []string{"member", "advertiser", "admin"} {
		if errs := Validate(&form{Role: r}); errs != nil {
			t.Errorf("expected %q to be valid, got %v", r, errs)
		}
	}
	if errs := Validate(&form{Role: "superuser"}); errs == nil {
		t.Fatal("expected unknown role to be rejected")
	}
}

func TestValidateVar(t *testing.T) {
	if err := ValidateVar("https://example.com/proof", "url"); err != nil {
		t.Fatalf("expected valid url, got %v", err)
	}
	if err := ValidateVar("not a url", "url"); err == nil {
		t.Fatal("expected invalid url to fail")
	}
}
