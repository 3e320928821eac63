package expr

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"7", "7"},
		{"  7  ", "7"},
		{"2+2", "4"},
		{"2 + 3 * 4", "14"},
		{"(2 + 3) * 4", "20"},
		{"10 / 4", "5/2"},
		{"1/3*3", "1"},
		{"-5 + 12", "7"},
		{"--3", "3"},
		{"+4", "4"},
		{"2*(3-(1+1))", "2"},
		{"100 - 50 - 25", "25"},
		{"8 / 2 / 2", "2"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			v, err := Eval(tc.in)
			require.NoError(t, err)
			want, _ := new(big.Rat).SetString(tc.want)
			assert.Equal(t, 0, v.Cmp(want), "got %s", v.RatString())
		})
	}
}

func TestEvalMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"   ",
		"seven",
		"7.0",
		"2^3",
		"alert(1)",
		"2 +",
		"(2 + 3",
		"2 + 3)",
		"()",
		"4 / 0",
		"4 / (2 - 2)",
		"3 4",
		"1e3",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := Eval(in)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestEqualsExact(t *testing.T) {
	ok, err := Equals("3 + 4", big.NewRat(7, 1))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Equals("15 / 2", big.NewRat(7, 1))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Equals("x", big.NewRat(7, 1))
	assert.ErrorIs(t, err, ErrMalformed)
}
