package refs

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Chative-core-poc-v1/draftflow/internal/draft"
)

// Normalize strips diacritics, uppercases and collapses whitespace so that
// "  joão  da silva" and "JOAO DA SILVA" compare equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToUpper(out)), " ")
}

// FindMatchByIDOrName returns the first item whose normalized id equals the
// needle's id or whose normalized name equals the needle's name. The id is
// checked first for each item; list order breaks ties.
func FindMatchByIDOrName[T any](items []T, key func(T) (id, name string), needleID, needleName string) (T, bool) {
	nid, nname := Normalize(needleID), Normalize(needleName)
	for _, it := range items {
		id, name := key(it)
		if nid != "" && Normalize(id) == nid {
			return it, true
		}
		if nname != "" && Normalize(name) == nname {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// FindSelection matches free text against both the id and the name of each item.
func FindSelection(items []draft.SelectionItem, needle string) (draft.SelectionItem, bool) {
	return FindMatchByIDOrName(items, func(it draft.SelectionItem) (string, string) {
		return it.ID, it.Name
	}, needle, needle)
}

// Resolve completes a partially known reference from a selection list. It
// returns ref unchanged when nothing matches.
func Resolve(ref *draft.IDNameRef, items []draft.SelectionItem) *draft.IDNameRef {
	if ref.Empty() {
		return ref
	}
	it, ok := FindMatchByIDOrName(items, func(it draft.SelectionItem) (string, string) {
		return it.ID, it.Name
	}, ref.IDValue(), ref.NameValue())
	if !ok {
		return ref
	}
	return draft.NewRef(it.ID, it.Name)
}
