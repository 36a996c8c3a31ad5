// Package classify maps a raw (account_id, account_nm) pair onto a canonical
// catalog concept with a confidence score.
package classify

import (
	"strings"

	"dart_accounts/pkg/core/catalog"
	"dart_accounts/pkg/core/normalize"
	"dart_accounts/pkg/models"
)

// Score is the match confidence. Higher is better; the order is fixed.
type Score int

const (
	NoMatch     Score = 0
	PartialName Score = 50
	ExactName   Score = 70
	PartialID   Score = 80
	ExactID     Score = 100
)

// Result is a successful classification.
type Result struct {
	Key   catalog.Key `json:"key"`
	Score Score       `json:"score"`
}

// Classifier scores lines against a catalog. It holds no mutable state.
type Classifier struct {
	catalog *catalog.Catalog
}

// New returns a classifier over c.
func New(c *catalog.Catalog) *Classifier {
	return &Classifier{catalog: c}
}

// Catalog returns the catalog the classifier matches against.
func (c *Classifier) Catalog() *catalog.Catalog {
	return c.catalog
}

// Classify returns the best definition of statement type st for the raw id
// and name. ok is false when nothing matched; that is an ordinary outcome.
//
// When two definitions reach the same score the one registered first wins.
// That precedence is inherited behavior and has not been confirmed as the
// intended product rule.
func (c *Classifier) Classify(st models.StatementType, rawID, rawName string) (Result, bool) {
	id := normalize.ID(rawID)
	name := normalize.Name(rawName)
	if id == "" && name == "" {
		return Result{}, false
	}

	var best Result
	for d := range c.catalog.Definitions(st) {
		s := ScoreDefinition(d, id, name)
		if s > best.Score {
			best = Result{Key: d.Key, Score: s}
			if s == ExactID {
				break
			}
		}
	}
	if best.Score == NoMatch {
		return Result{}, false
	}
	return best, true
}

// ScoreDefinition is the best score d earns for an already normalized id and
// name.
func ScoreDefinition(d catalog.Definition, id, name string) Score {
	best := NoMatch
	if id != "" {
		for _, v := range d.IDs {
			if id == v {
				return ExactID
			}
			if strings.Contains(id, v) {
				best = PartialID
			}
		}
	}
	if best > ExactName || name == "" {
		return best
	}

	for _, v := range d.Names {
		if name == v {
			return ExactName
		}
		if strings.Contains(name, v) {
			best = max(best, PartialName)
		}
	}
	return best
}
