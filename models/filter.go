// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// Predicate selects records in a local search. Implementations are the
// types declared in this file.
type Predicate interface {
	predicate()
}

// FieldEquals matches records whose JSON field equals Value exactly.
type FieldEquals struct {
	Field string
	Value any
}

// FieldContains matches records whose text field contains Substring,
// ignoring case.
type FieldContains struct {
	Field     string
	Substring string
}

// IndexEquals matches records with a secondary index entry.
type IndexEquals struct {
	Index string
	Value string
}

// InAgeBucket matches records whose date field falls in Bucket as of Now.
// The bucket is computed at query time and never stored.
type InAgeBucket struct {
	Field  string
	Bucket AgeBucket
	// Now is the reference time; the zero value means time.Now.
	Now time.Time
}

// All is the conjunction of its members. An empty All matches everything.
type All []Predicate

func (FieldEquals) predicate()   {}
func (FieldContains) predicate() {}
func (IndexEquals) predicate()   {}
func (InAgeBucket) predicate()   {}
func (All) predicate()           {}

// AgeBucket is an age range in completed months.
type AgeBucket string

const (
	AgeUnder6Months AgeBucket = "0-5m"
	Age6To11Months  AgeBucket = "6-11m"
	Age12To23Months AgeBucket = "12-23m"
	Age24To35Months AgeBucket = "24-35m"
	Age36To59Months AgeBucket = "36-59m"
	Age60PlusMonths AgeBucket = "60m+"
	AgeUnknown      AgeBucket = "unknown"
)

// AgeInMonths returns the number of completed months between birth and now.
func AgeInMonths(birth, now time.Time) int {
	if birth.IsZero() || now.Before(birth) {
		return -1
	}
	birth, now = birth.UTC(), now.UTC()
	months := (now.Year()-birth.Year())*12 + int(now.Month()) - int(birth.Month())
	if now.Day() < birth.Day() {
		months--
	}
	return months
}

// BucketFor classifies a date of birth as of now.
func BucketFor(birth, now time.Time) AgeBucket {
	m := AgeInMonths(birth, now)
	switch {
	case m < 0:
		return AgeUnknown
	case m < 6:
		return AgeUnder6Months
	case m < 12:
		return Age6To11Months
	case m < 24:
		return Age12To23Months
	case m < 36:
		return Age24To35Months
	case m < 60:
		return Age36To59Months
	default:
		return Age60PlusMonths
	}
}

// Filter is the consumer-facing query shape.
type Filter struct {
	// Index and Value select by a secondary index when Index is set.
	Index string
	Value string
	// Where holds additional predicates, all of which must match.
	Where []Predicate
}

// Predicate folds the filter into a single predicate.
func (f Filter) Predicate() Predicate {
	all := make(All, 0, len(f.Where)+1)
	if f.Index != "" {
		all = append(all, IndexEquals{Index: f.Index, Value: f.Value})
	}
	all = append(all, f.Where...)
	return all
}
