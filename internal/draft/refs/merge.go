package refs

import "github.com/Chative-core-poc-v1/draftflow/internal/draft"

// Merge applies in onto *target:
//   - absent leaves the reference untouched;
//   - null clears both fields;
//   - a string sets the name, a number sets the id;
//   - an object overwrites only the keys it carries.
//
// Apart from an explicit null, a merge never empties a reference that had a
// known field.
func Merge(target **draft.IDNameRef, in Incoming) {
	if target == nil || !in.set {
		return
	}
	if in.null {
		*target = nil
		return
	}

	var prev draft.IDNameRef
	if *target != nil {
		prev = **target
	}
	next := prev

	switch {
	case in.str != nil:
		next.Name = cleaned(in.str)
	case in.num != nil:
		next.ID = cleaned(in.num)
	case in.isField:
		if in.id.set {
			next.ID = cleaned(in.id.value)
		}
		if in.name.set {
			next.Name = cleaned(in.name.value)
		}
	}

	if next.Empty() && !prev.Empty() {
		return
	}
	if next.Empty() {
		*target = nil
		return
	}
	*target = &next
}
