package model

import (
	"strings"

	"golang.org/x/text/cases"
)

type State struct {
	Name         string `json:"name" bson:"name"`
	Abbreviation string `json:"abbreviation" bson:"abbreviation"`
}

// States is the closed reference set a Location's state must belong to.
var States = map[string]string{
	"Alabama":              "AL",
	"Alaska":               "AK",
	"Arizona":              "AZ",
	"Arkansas":             "AR",
	"California":           "CA",
	"Colorado":             "CO",
	"Connecticut":          "CT",
	"Delaware":             "DE",
	"District of Columbia": "DC",
	"Florida":              "FL",
	"Georgia":              "GA",
	"Hawaii":               "HI",
	"Idaho":                "ID",
	"Illinois":             "IL",
	"Indiana":              "IN",
	"Iowa":                 "IA",
	"Kansas":               "KS",
	"Kentucky":             "KY",
	"Louisiana":            "LA",
	"Maine":                "ME",
	"Maryland":             "MD",
	"Massachusetts":        "MA",
	"Michigan":             "MI",
	"Minnesota":            "MN",
	"Mississippi":          "MS",
	"Missouri":             "MO",
	"Montana":              "MT",
	"Nebraska":             "NE",
	"Nevada":               "NV",
	"New Hampshire":        "NH",
	"New Jersey":           "NJ",
	"New Mexico":           "NM",
	"New York":             "NY",
	"North Carolina":       "NC",
	"North Dakota":         "ND",
	"Ohio":                 "OH",
	"Oklahoma":             "OK",
	"Oregon":               "OR",
	"Pennsylvania":         "PA",
	"Rhode Island":         "RI",
	"South Carolina":       "SC",
	"South Dakota":         "SD",
	"Tennessee":            "TN",
	"Texas":                "TX",
	"Utah":                 "UT",
	"Vermont":              "VT",
	"Virginia":             "VA",
	"Washington":           "WA",
	"West Virginia":        "WV",
	"Wisconsin":            "WI",
	"Wyoming":              "WY",
}

var (
	statesByName  = map[string]State{}
	statesByAbbrv = map[string]State{}
)

// fold returns a case-folded key. A Caser keeps state, so each call gets its
// own.
func fold(s string) string {
	return cases.Fold().String(s)
}

func init() {
	for name, abbreviation := range States {
		state := State{Name: name, Abbreviation: abbreviation}
		statesByName[fold(name)] = state
		statesByAbbrv[abbreviation] = state
	}
}

// LookupState resolves a state given by name (any case) or by its
// two-letter abbreviation.
func LookupState(input string) (State, bool) {
	input = strings.Join(strings.Fields(input), " ")
	if state, ok := statesByName[fold(input)]; ok {
		return state, true
	}
	state, ok := statesByAbbrv[strings.ToUpper(input)]
	return state, ok
}

// Valid reports whether s is exactly a member of the reference set.
func (s State) Valid() bool {
	abbreviation, ok := States[s.Name]
	return ok && abbreviation == s.Abbreviation
}
