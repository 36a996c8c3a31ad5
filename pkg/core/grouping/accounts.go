// Package grouping collapses the line items of one reporting scope into the
// distinct accounts shown in account pickers.
package grouping

import (
	"slices"
	"strings"
	"unicode/utf8"

	"dart_accounts/pkg/core/normalize"
	"dart_accounts/pkg/models"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// NoIDPrefix marks group keys of accounts filed without an account_id.
const NoIDPrefix = "NA"

// AccountGroup is one distinct account with its representative display name.
type AccountGroup struct {
	AccountID *string `json:"account_id"`
	AccountNm string  `json:"account_nm"`
	Key       string  `json:"key"`
}

// NameCount is one literal account name and how often it was filed.
type NameCount struct {
	Name  string
	Count int
}

// newCollator returns a Korean collator. Collators keep internal buffers, so
// each call site gets its own.
func newCollator(opts ...collate.Option) *collate.Collator {
	return collate.New(language.Korean, opts...)
}

// CompareRepresentative orders name candidates best first: higher count, then
// longer name, then Korean collation order, then byte order.
func CompareRepresentative(coll *collate.Collator, a, b NameCount) int {
	if a.Count != b.Count {
		return b.Count - a.Count
	}
	la, lb := utf8.RuneCountInString(a.Name), utf8.RuneCountInString(b.Name)
	if la != lb {
		return lb - la
	}
	if c := coll.CompareString(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

// PickRepresentative returns the best name of a tally. It returns "" for an
// empty tally.
func PickRepresentative(counts map[string]int) string {
	return pickRepresentative(newCollator(), counts)
}

func pickRepresentative(coll *collate.Collator, counts map[string]int) string {
	var best NameCount
	first := true
	for name, n := range counts {
		cand := NameCount{Name: name, Count: n}
		if first || CompareRepresentative(coll, cand, best) < 0 {
			best = cand
			first = false
		}
	}
	return best.Name
}

// CompareGroups orders picker entries: accounts with an id first, then by
// name in case-insensitive Korean collation, then by key.
func CompareGroups(coll *collate.Collator, a, b AccountGroup) int {
	if (a.AccountID == nil) != (b.AccountID == nil) {
		if a.AccountID != nil {
			return -1
		}
		return 1
	}
	if c := coll.CompareString(a.AccountNm, b.AccountNm); c != 0 {
		return c
	}
	return strings.Compare(a.Key, b.Key)
}

type tally struct {
	accountID *string
	counts    map[string]int
}

// ListAccounts groups the items inside scope into distinct accounts. Lines with
// an account_id are grouped by that raw id; lines without one are grouped by
// normalized name. Each group shows its most frequently filed literal name.
func ListAccounts(scope models.Scope, items []models.RawLineItem) []AccountGroup {
	byID := map[string]*tally{}
	byName := map[string]*tally{}

	for _, li := range items {
		if !scope.Contains(li) {
			continue
		}
		name := models.Deref(li.AccountNm)

		var t *tally
		if li.HasAccountID() {
			id := *li.AccountID
			if t = byID[id]; t == nil {
				t = &tally{accountID: &id, counts: map[string]int{}}
				byID[id] = t
			}
		} else {
			norm := normalize.Name(name)
			if t = byName[norm]; t == nil {
				t = &tally{counts: map[string]int{}}
				byName[norm] = t
			}
		}
		t.counts[name]++
	}

	coll := newCollator()
	out := make([]AccountGroup, 0, len(byID)+len(byName))
	for id, t := range byID {
		rep := pickRepresentative(coll, t.counts)
		out = append(out, AccountGroup{AccountID: t.accountID, AccountNm: rep, Key: id + "|" + rep})
	}
	for _, t := range byName {
		rep := pickRepresentative(coll, t.counts)
		out = append(out, AccountGroup{AccountNm: rep, Key: NoIDPrefix + "|" + rep})
	}

	sortColl := newCollator(collate.IgnoreCase)
	slices.SortFunc(out, func(a, b AccountGroup) int {
		return CompareGroups(sortColl, a, b)
	})
	return out
}
