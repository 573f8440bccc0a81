package models

import "fmt"

// Any matches every value of an attribute in a search criterion.
const Any = "any"

// Criteria is the set of partner filters collected by the search dialog.
// Empty fields are treated the same as Any.
type Criteria struct {
	Language string `json:"language,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Region   string `json:"region,omitempty"`
	Country  string `json:"country,omitempty"`
}

func criterionAccepts(criterion, attribute string) bool {
	return criterion == "" || criterion == Any || criterion == attribute
}

// Accepts reports whether the criteria accept the given user's profile.
// Mutual compatibility requires Accepts in both directions.
func (c Criteria) Accepts(u *User) bool {
	return criterionAccepts(c.Language, u.Language) &&
		criterionAccepts(c.Gender, u.Gender) &&
		criterionAccepts(c.Region, u.Region) &&
		criterionAccepts(c.Country, u.Country)
}

func (c Criteria) String() string {
	return fmt.Sprintf(
		"Criteria(lang=%s, gender=%s, region=%s, country=%s)",
		c.Language, c.Gender, c.Region, c.Country,
	)
}
