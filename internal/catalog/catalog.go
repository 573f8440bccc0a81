// Package catalog holds the enumerated option sets the dialogs validate
// against: languages, genders and the region to country mapping. The core
// treats these as read-only lookup tables.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
)

type Catalog struct {
	Languages []string
	Genders   []string
	Regions   []string
	Countries map[string][]string
}

// New returns the built-in catalog.
func New() *Catalog {
	regions := make([]string, 0, len(defaultCountries))
	for region := range defaultCountries {
		regions = append(regions, region)
	}
	slices.Sort(regions)

	return &Catalog{
		Languages: []string{"en", "ar", "hi", "id"},
		Genders:   []string{"male", "female"},
		Regions:   regions,
		Countries: defaultCountries,
	}
}

// Load returns the built-in catalog with the region/country mapping
// replaced by the JSON file at path, if any.
func Load(path string) (*Catalog, error) {
	c := New()
	if path == "" {
		return c, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	countries := make(map[string][]string)
	if err := json.Unmarshal(raw, &countries); err != nil {
		return nil, fmt.Errorf("unmarshalling catalog file: %w", err)
	}
	if len(countries) == 0 {
		return nil, fmt.Errorf("catalog file %q has no regions", path)
	}

	regions := make([]string, 0, len(countries))
	for region := range countries {
		regions = append(regions, region)
	}
	slices.Sort(regions)

	c.Regions = regions
	c.Countries = countries
	return c, nil
}

func (c *Catalog) ValidLanguage(v string) bool {
	return slices.Contains(c.Languages, strings.ToLower(v))
}

func (c *Catalog) ValidGender(v string) bool {
	return slices.Contains(c.Genders, strings.ToLower(v))
}

func (c *Catalog) ValidRegion(v string) bool {
	return slices.Contains(c.Regions, v)
}

func (c *Catalog) CountriesIn(region string) []string {
	return c.Countries[region]
}

func (c *Catalog) ValidCountry(region, v string) bool {
	return slices.Contains(c.Countries[region], v)
}

var defaultCountries = map[string][]string{
	"Asia": {
		"Afghanistan", "Bahrain", "Bangladesh", "Bhutan", "Brunei", "Cambodia", "China", "India",
		"Indonesia", "Iran", "Iraq", "Israel", "Japan", "Jordan", "Kazakhstan", "Kuwait", "Kyrgyzstan",
		"Laos", "Lebanon", "Malaysia", "Maldives", "Mongolia", "Myanmar", "Nepal", "North Korea",
		"Oman", "Pakistan", "Palestine State", "Philippines", "Qatar", "Saudi Arabia", "Singapore",
		"South Korea", "Sri Lanka", "Syria", "Taiwan", "Tajikistan", "Thailand", "Timor-Leste",
		"Turkey", "Turkmenistan", "United Arab Emirates", "Uzbekistan", "Vietnam", "Yemen",
	},
	"Europe": {
		"Albania", "Andorra", "Armenia", "Austria", "Azerbaijan", "Belarus", "Belgium",
		"Bosnia and Herzegovina", "Bulgaria", "Croatia", "Cyprus", "Czech Republic", "Denmark",
		"Estonia", "Finland", "France", "Georgia", "Germany", "Greece", "Hungary", "Iceland",
		"Ireland", "Italy", "Kosovo", "Latvia", "Liechtenstein", "Lithuania", "Luxembourg", "Malta",
		"Moldova", "Monaco", "Montenegro", "Netherlands", "North Macedonia", "Norway", "Poland",
		"Portugal", "Romania", "Russia", "San Marino", "Serbia", "Slovakia", "Slovenia", "Spain",
		"Sweden", "Switzerland", "Ukraine", "United Kingdom", "Vatican City",
	},
	"Africa": {
		"Algeria", "Angola", "Benin", "Botswana", "Burkina Faso", "Burundi", "Cabo Verde",
		"Cameroon", "Central African Republic", "Chad", "Comoros", "Congo, Democratic Republic of the",
		"Congo, Republic of the", "Cote d'Ivoire", "Djibouti", "Egypt", "Equatorial Guinea",
		"Eritrea", "Eswatini", "Ethiopia", "Gabon", "Gambia", "Ghana", "Guinea", "Guinea-Bissau",
		"Kenya", "Lesotho", "Liberia", "Libya", "Madagascar", "Malawi", "Mali", "Mauritania",
		"Mauritius", "Morocco", "Mozambique", "Namibia", "Niger", "Nigeria", "Rwanda",
		"Sao Tome and Principe", "Senegal", "Seychelles", "Sierra Leone", "Somalia", "South Africa",
		"South Sudan", "Sudan", "Tanzania", "Togo", "Tunisia", "Uganda", "Zambia", "Zimbabwe",
	},
	"North America": {
		"Antigua and Barbuda", "Bahamas", "Barbados", "Belize", "Canada", "Costa Rica", "Cuba",
		"Dominica", "Dominican Republic", "El Salvador", "Grenada", "Guatemala", "Haiti", "Honduras",
		"Jamaica", "Mexico", "Nicaragua", "Panama", "Saint Kitts and Nevis", "Saint Lucia",
		"Saint Vincent and the Grenadines", "United States of America",
	},
	"South America": {
		"Argentina", "Bolivia", "Brazil", "Chile", "Colombia", "Ecuador", "Guyana", "Paraguay",
		"Peru", "Suriname", "Uruguay", "Venezuela",
	},
	"Oceania": {
		"Australia", "Fiji", "Kiribati", "Marshall Islands", "Micronesia", "Nauru", "New Zealand",
		"Palau", "Papua New Guinea", "Samoa", "Solomon Islands", "Tonga", "Tuvalu", "Vanuatu",
	},
}
