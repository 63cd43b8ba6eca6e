// Package education holds the catalogue of short nutrition articles shown
// on the education screen.
package education

import "strings"

type Course struct {
	Category string
	Title    string
	Duration string
	Author   string
	Rating   float64
}

var catalogue = []Course{
	{Category: "Ingredients", Title: "Food Ingredient Facts", Duration: "5 Minutes", Author: "Zayn Malique", Rating: 4.9},
	{Category: "Snack", Title: "Tips for Healthy Snacking", Duration: "3 Minutes", Author: "Roy Ananda Aulia", Rating: 4.9},
	{Category: "Nutrition", Title: "Boost Your Nutrition Knowledge", Duration: "3 Minutes", Author: "Hernandez Putra", Rating: 4.9},
	{Category: "Nutrition", Title: "Healthy Foods", Duration: "3 Minutes", Author: "Millea Zaneta", Rating: 4.9},
}

// Courses returns a copy of the full catalogue in display order.
func Courses() []Course {
	out := make([]Course, len(catalogue))
	copy(out, catalogue)
	return out
}

// Search returns the courses whose title, category or author contains every
// word of query, ignoring case. A blank query matches everything.
func Search(query string) []Course {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return Courses()
	}

	var out []Course
	for _, c := range catalogue {
		haystack := strings.ToLower(c.Title + " " + c.Category + " " + c.Author)
		if containsAll(haystack, words) {
			out = append(out, c)
		}
	}
	return out
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}
