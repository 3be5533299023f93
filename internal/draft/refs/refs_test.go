package refs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/draftflow/internal/draft"
)

type upsert struct {
	Barber Incoming `json:"barber"`
}

func decode(t *testing.T, body string) Incoming {
	t.Helper()
	var u upsert
	require.NoError(t, json.Unmarshal([]byte(body), &u))
	return u.Barber
}

func TestIncomingDistinguishesAbsentAndNull(t *testing.T) {
	absent := decode(t, `{}`)
	assert.False(t, absent.IsSet())

	null := decode(t, `{"barber": null}`)
	assert.True(t, null.IsSet())
	assert.True(t, null.IsNull())

	str := decode(t, `{"barber": "Carlos"}`)
	assert.True(t, str.IsSet())
	assert.False(t, str.IsNull())
}

func TestMergeNullClears(t *testing.T) {
	target := draft.NewRef("1", "Carlos")
	Merge(&target, Null())
	assert.True(t, target.Empty())
}

func TestMergeAbsentIsNoop(t *testing.T) {
	target := draft.NewRef("1", "Carlos")
	Merge(&target, Absent())
	assert.Equal(t, draft.NewRef("1", "Carlos"), target)

	var empty *draft.IDNameRef
	Merge(&empty, Absent())
	assert.Nil(t, empty)
}

func TestMergeObjectUpdatesOnlyProvidedKeys(t *testing.T) {
	target := draft.NewRef("1", "Carlos")
	Merge(&target, decode(t, `{"barber": {"id": "5"}}`))
	assert.Equal(t, "5", target.IDValue())
	assert.Equal(t, "Carlos", target.NameValue())

	Merge(&target, decode(t, `{"barber": {"name": "Bruno"}}`))
	assert.Equal(t, "5", target.IDValue())
	assert.Equal(t, "Bruno", target.NameValue())

	Merge(&target, ID("9"))
	assert.Equal(t, "9", target.IDValue())
	assert.Equal(t, "Bruno", target.NameValue())
}

func TestMergeStringSetsName(t *testing.T) {
	target := draft.NewRef("1", "")
	Merge(&target, decode(t, `{"barber": "  Ana "}`))
	assert.Equal(t, "1", target.IDValue())
	assert.Equal(t, "Ana", target.NameValue())

	var fresh *draft.IDNameRef
	Merge(&fresh, Name("Ana"))
	require.NotNil(t, fresh)
	assert.Nil(t, fresh.ID)
	assert.Equal(t, "Ana", fresh.NameValue())
}

func TestMergeNumberSetsID(t *testing.T) {
	var target *draft.IDNameRef
	Merge(&target, decode(t, `{"barber": 12}`))
	assert.Equal(t, "12", target.IDValue())

	Merge(&target, decode(t, `{"barber": {"id": 7.0, "name": "Lia"}}`))
	assert.Equal(t, "7", target.IDValue())
	assert.Equal(t, "Lia", target.NameValue())
}

func TestMergeKeepsLargeIntegerIDsExact(t *testing.T) {
	var target *draft.IDNameRef
	Merge(&target, decode(t, `{"barber": {"id": 9007199254740993}}`))
	assert.Equal(t, "9007199254740993", target.IDValue())

	Merge(&target, decode(t, `{"barber": 9007199254740995}`))
	assert.Equal(t, "9007199254740995", target.IDValue())

	Merge(&target, decode(t, `{"barber": 9007199254740993.0}`))
	assert.Equal(t, "9007199254740993", target.IDValue())

	Merge(&target, decode(t, `{"barber": 1.5e1}`))
	assert.Equal(t, "15", target.IDValue())

	Merge(&target, decode(t, `{"barber": 2.5}`))
	assert.Equal(t, "2.5", target.IDValue())
}

func TestMergeNeverEmptiesKnownRefWithoutExplicitNull(t *testing.T) {
	target := draft.NewRef("1", "")
	Merge(&target, decode(t, `{"barber": {"id": null}}`))
	assert.Equal(t, "1", target.IDValue())

	Merge(&target, Name("   "))
	assert.Equal(t, "1", target.IDValue())

	target = draft.NewRef("1", "Carlos")
	Merge(&target, decode(t, `{"barber": {"id": null}}`))
	assert.Nil(t, target.ID)
	assert.Equal(t, "Carlos", target.NameValue())
}

func TestIncomingRejectsUnsupported(t *testing.T) {
	var u upsert
	assert.Error(t, json.Unmarshal([]byte(`{"barber": true}`), &u))
	assert.Error(t, json.Unmarshal([]byte(`{"barber": {"id": [1]}}`), &u))
}

func TestIncomingMarshalRoundTrip(t *testing.T) {
	for _, body := range []string{`"Ana"`, `12`, `{"id":"5"}`, `null`} {
		in := decode(t, `{"barber": `+body+`}`)
		out, err := json.Marshal(in)
		require.NoError(t, err)
		assert.JSONEq(t, body, string(out))
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "JOAO DA SILVA", Normalize("  João   da\tsilva "))
	assert.Equal(t, "ACAI", Normalize("açaí"))
	assert.Equal(t, "", Normalize("   "))
}

func TestFindSelection(t *testing.T) {
	items := []draft.SelectionItem{
		{ID: "10", Name: "Corte Masculino"},
		{ID: "11", Name: "Barba"},
		{ID: "12", Name: "barba"},
	}

	it, ok := FindSelection(items, "barba ")
	require.True(t, ok)
	assert.Equal(t, "11", it.ID, "first match wins")

	it, ok = FindSelection(items, "12")
	require.True(t, ok)
	assert.Equal(t, "12", it.ID)

	it, ok = FindSelection(items, "corte masculíno")
	require.True(t, ok)
	assert.Equal(t, "10", it.ID)

	_, ok = FindSelection(items, "sobrancelha")
	assert.False(t, ok)
	_, ok = FindSelection(items, "")
	assert.False(t, ok)
}

func TestFindMatchIDCheckedBeforeName(t *testing.T) {
	items := []draft.SelectionItem{
		{ID: "A", Name: "B"},
		{ID: "B", Name: "A"},
	}
	it, ok := FindMatchByIDOrName(items, func(it draft.SelectionItem) (string, string) { return it.ID, it.Name }, "B", "")
	require.True(t, ok)
	assert.Equal(t, "B", it.ID)
}

func TestResolve(t *testing.T) {
	items := []draft.SelectionItem{{ID: "10", Name: "Corte"}, {ID: "11", Name: "Barba"}}
	got := Resolve(draft.NewRef("", "barba"), items)
	assert.Equal(t, "11", got.IDValue())
	assert.Equal(t, "Barba", got.NameValue())

	unknown := draft.NewRef("", "Pé")
	assert.Same(t, unknown, Resolve(unknown, items))
	assert.Nil(t, Resolve(nil, items))
}
