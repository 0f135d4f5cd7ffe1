// Package filter stores named respondent selections and turns them into row
// masks.
package filter
