package auth

import (
	"slices"
	"time"
)

// ReferencePoint pairs an external user id with a known registration
// date. Telegram assigns ids monotonically, so a handful of known
// (id, date) samples lets us bound when an unknown id was created.
type ReferencePoint struct {
	ID   int64
	Date time.Time
}

// DefaultReferencePoints are publicly observable (user id, registration
// month) samples. Telegram never exposes registration dates, so the
// gate works from these anchors.
var DefaultReferencePoints = []ReferencePoint{
	{ID: 2768409, Date: time.Date(2013, 11, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 11538514, Date: time.Date(2014, 10, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 23646077, Date: time.Date(2015, 9, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 38015510, Date: time.Date(2016, 4, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 54845238, Date: time.Date(2017, 2, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 101260938, Date: time.Date(2017, 12, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 140105142, Date: time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 249349434, Date: time.Date(2018, 12, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 400169472, Date: time.Date(2019, 8, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 805158066, Date: time.Date(2020, 11, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 1500000000, Date: time.Date(2021, 9, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 2300000000, Date: time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 5000000000, Date: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
	{ID: 6500000000, Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
}

// AgeGate estimates external account creation dates by monotonic linear
// interpolation over a reference table.
type AgeGate struct {
	refs []ReferencePoint
	now  func() time.Time
}

// NewAgeGate creates an AgeGate. The reference points are sorted by id;
// at least one point is expected for the gate to be meaningful.
func NewAgeGate(refs []ReferencePoint) *AgeGate {
	sorted := slices.Clone(refs)
	slices.SortFunc(sorted, func(a, b ReferencePoint) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return &AgeGate{refs: sorted, now: time.Now}
}

// Estimate returns the estimated registration date for the given id.
// Ids below the smallest reference get the smallest reference's date.
// Ids above every reference get "yesterday": the account may have been
// created minutes ago, so the estimate stays conservative.
func (g *AgeGate) Estimate(id int64) time.Time {
	if len(g.refs) == 0 {
		return g.now().AddDate(0, 0, -1)
	}
	if id <= g.refs[0].ID {
		return g.refs[0].Date
	}
	for i := 1; i < len(g.refs); i++ {
		ref := g.refs[i]
		if id > ref.ID {
			continue
		}
		prev := g.refs[i-1]
		span := ref.Date.Sub(prev.Date)
		frac := float64(id-prev.ID) / float64(ref.ID-prev.ID)
		return prev.Date.Add(time.Duration(float64(span) * frac))
	}
	return g.now().AddDate(0, 0, -1)
}

// Check returns ErrAccountTooYoung if the estimated account age for id
// is under minAge. A zero minAge disables the gate.
func (g *AgeGate) Check(id int64, minAge time.Duration) error {
	if minAge <= 0 {
		return nil
	}
	if g.now().Sub(g.Estimate(id)) < minAge {
		return ErrAccountTooYoung
	}
	return nil
}
