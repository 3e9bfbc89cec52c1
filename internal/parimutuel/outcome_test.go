package parimutuel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeID_StringAndParse(t *testing.T) {
	cases := []struct {
		in   string
		want OutcomeID
	}{
		{"win:p1", OutcomeID{Kind: KindWin, Target: "p1"}},
		{"advance:p2", OutcomeID{Kind: KindAdvance, Target: "p2"}},
		{"prop:first-blood:yes", OutcomeID{Kind: KindProp, Target: "first-blood", Side: SideYes}},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, err := ParseOutcomeID(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
			assert.Equal(t, c.in, got.String())
		})
	}
}

func TestOutcomeID_Rejects(t *testing.T) {
	for _, in := range []string{"", "win", "bogus:p1", "win:", "prop:x", "prop:x:maybe", "win:p1:yes"} {
		_, err := ParseOutcomeID(in)
		assert.ErrorIs(t, err, ErrInvalidOutcome, in)
	}
}

func TestNewOutcome_SideOnlyForProp(t *testing.T) {
	_, err := NewOutcome(KindWin, "p1", "yes")
	assert.ErrorIs(t, err, ErrInvalidOutcome)

	o, err := NewOutcome(KindProp, " goal ", "YES")
	require.NoError(t, err)
	assert.Equal(t, "goal:yes", o.Key())
}

func TestOutcomeID_DistinctAcrossMarkets(t *testing.T) {
	w := player(t, KindWin, "p1")
	a := player(t, KindAdvance, "p1")
	assert.NotEqual(t, w, a)
	assert.Equal(t, w.Key(), a.Key())
}

func TestOutcomeID_JSONMapKey(t *testing.T) {
	m := map[OutcomeID]int{prop(t, "goal", SideNo): 3}
	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"prop:goal:no":3}`, string(b))

	var back map[OutcomeID]int
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, m, back)
}

func TestParseMarketKind(t *testing.T) {
	k, err := ParseMarketKind(" WIN ")
	require.NoError(t, err)
	assert.Equal(t, KindWin, k)

	_, err = ParseMarketKind("exacta")
	assert.ErrorIs(t, err, ErrUnknownMarket)
}
