// Package matcher resolves which case documents satisfy a required piece.
package matcher

import "permit-engine/internal/model"

// Resolver is one correlation strategy between a piece and documents.
type Resolver struct {
	Name  string
	Match func(piece model.Piece, doc model.Document) bool
}

// ByPieceJustification matches the precise piece correlation.
var ByPieceJustification = Resolver{
	Name: "piece_justification",
	Match: func(p model.Piece, d model.Document) bool {
		return d.PieceJustificationID != "" && d.PieceJustificationID == p.PieceID
	},
}

// ByTypeDocument matches the coarser tag carried by older documents.
var ByTypeDocument = Resolver{
	Name: "type_document",
	Match: func(p model.Piece, d model.Document) bool {
		return d.TypeDocumentID != "" && d.TypeDocumentID == p.PieceID
	},
}

// DefaultResolvers is the production resolution order.
var DefaultResolvers = []Resolver{ByPieceJustification, ByTypeDocument}

type Match struct {
	Piece     model.Piece
	Resolver  string
	Documents []model.Document
	Satisfied bool
}

type Matcher struct {
	resolvers []Resolver
}

// New returns a matcher trying resolvers in order. Without resolvers it uses
// DefaultResolvers.
func New(resolvers ...Resolver) *Matcher {
	if len(resolvers) == 0 {
		resolvers = DefaultResolvers
	}
	return &Matcher{resolvers: resolvers}
}

// Resolve returns the documents matched by the first resolver that matches
// anything. The piece is satisfied when at least one of them is validated.
// docs must already be filtered to the case under evaluation.
func (m *Matcher) Resolve(piece model.Piece, docs []model.Document) Match {
	for _, r := range m.resolvers {
		var hits []model.Document
		for _, d := range docs {
			if r.Match(piece, d) {
				hits = append(hits, d)
			}
		}
		if len(hits) == 0 {
			continue
		}
		res := Match{Piece: piece, Resolver: r.Name, Documents: hits}
		for _, d := range hits {
			if d.Valide {
				res.Satisfied = true
				break
			}
		}
		return res
	}
	return Match{Piece: piece}
}

func (m *Matcher) Satisfied(piece model.Piece, docs []model.Document) bool {
	return m.Resolve(piece, docs).Satisfied
}

// FilterForCase keeps the documents owned by caseID.
func FilterForCase(docs []model.Document, caseID string) []model.Document {
	out := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		if d.DocumentableID == caseID {
			out = append(out, d)
		}
	}
	return out
}

// CountValidated returns the number of documents and how many are validated.
func CountValidated(docs []model.Document) (total, validated int) {
	for _, d := range docs {
		if d.Valide {
			validated++
		}
	}
	return len(docs), validated
}
