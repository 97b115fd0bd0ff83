package domain

import (
	"regexp"
	"strings"
)

type Address struct {
	FullName   string `json:"full_name" bson:"full_name"`
	Phone      string `json:"phone" bson:"phone"`
	Line1      string `json:"line1" bson:"line1"`
	Line2      string `json:"line2,omitempty" bson:"line2,omitempty"`
	City       string `json:"city" bson:"city"`
	State      string `json:"state" bson:"state"`
	PostalCode string `json:"postal_code" bson:"postal_code"`
	Country    string `json:"country" bson:"country"`
}

var phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-]{7,20}$`)

// Validate returns a message per invalid field, or nil when the address is usable.
func (a Address) Validate() map[string]string {
	errs := make(map[string]string)
	required := []struct {
		field string
		value string
	}{
		{"full_name", a.FullName},
		{"phone", a.Phone},
		{"line1", a.Line1},
		{"city", a.City},
		{"state", a.State},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs[r.field] = "is required"
		}
	}
	if _, missing := errs["phone"]; !missing && !phonePattern.MatchString(strings.TrimSpace(a.Phone)) {
		errs["phone"] = "is not a valid phone number"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
