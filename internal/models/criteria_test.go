package models

import "testing"

func TestCriteriaAccepts(t *testing.T) {
	user := &User{
		TelegramID: 1,
		Language:   "en",
		Gender:     "male",
		Region:     "Asia",
		Country:    "India",
	}

	tests := []struct {
		name     string
		criteria Criteria
		want     bool
	}{
		{name: "empty criteria accept anyone", criteria: Criteria{}, want: true},
		{name: "explicit any accepts anyone", criteria: Criteria{Language: Any, Gender: Any, Region: Any, Country: Any}, want: true},
		{name: "matching language", criteria: Criteria{Language: "en"}, want: true},
		{name: "mismatching language", criteria: Criteria{Language: "ar"}, want: false},
		{name: "full exact match", criteria: Criteria{Language: "en", Gender: "male", Region: "Asia", Country: "India"}, want: true},
		{name: "one mismatch rejects", criteria: Criteria{Language: "en", Country: "Japan"}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.criteria.Accepts(user); got != tc.want {
				t.Fatalf("Accepts = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestUserBlockList(t *testing.T) {
	u := &User{TelegramID: 1}
	if u.HasBlocked(2) {
		t.Fatal("fresh user blocks nobody")
	}
	u.Block(2)
	u.Block(2)
	if !u.HasBlocked(2) {
		t.Fatal("expected 2 to be blocked")
	}
	if len(u.BlockedIDs) != 1 {
		t.Fatalf("blocking twice must not duplicate, got %v", u.BlockedIDs)
	}
}
