package syncer

import (
	"fmt"

	"library-sync/internal/projection"
)

// Kind is the closed set of entity types the synchronizer knows about.
type Kind uint8

const (
	KindAuthor Kind = iota + 1
	KindCategory
	KindLocation
	KindBook
	KindBookCopy
)

var kindTopics = map[Kind]string{
	KindAuthor:   "author",
	KindCategory: "category",
	KindLocation: "location",
	KindBook:     "book",
	KindBookCopy: "book_copy",
}

var kindCollections = map[Kind]projection.Collection{
	KindAuthor:   projection.Authors,
	KindCategory: projection.Categories,
	KindLocation: projection.Locations,
	KindBook:     projection.Books,
	KindBookCopy: projection.BookCopies,
}

// AllKinds lists every kind in declaration order.
var AllKinds = []Kind{KindAuthor, KindCategory, KindLocation, KindBook, KindBookCopy}

// ParseKind maps a bus topic to its kind.
func ParseKind(topic string) (Kind, bool) {
	for k, t := range kindTopics {
		if t == topic {
			return k, true
		}
	}
	return 0, false
}

// Topic returns the bus topic carrying events for k.
func (k Kind) Topic() string {
	if t, ok := kindTopics[k]; ok {
		return t
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) String() string { return k.Topic() }

// Collection returns the canonical collection of k.
func (k Kind) Collection() projection.Collection {
	return kindCollections[k]
}

// Op is the operation tag carried in the event key.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ParseOp maps an event key to its operation.
func ParseOp(key string) (Op, bool) {
	switch Op(key) {
	case OpCreate, OpUpdate, OpDelete:
		return Op(key), true
	}
	return "", false
}
