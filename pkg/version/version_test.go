package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "1.2.3", want: "1.2.3"},
		{name: "trims whitespace", in: "  1.2.3\n", want: "1.2.3"},
		{name: "strips v", in: "v1.2", want: "1.2"},
		{name: "strips upper V", in: "V1.2", want: "1.2"},
		{name: "strips v dot", in: "v.1.2", want: "1.2"},
		{name: "strips only one prefix", in: "vv1", want: "v1"},
		{name: "empty", in: "", want: ""},
		{name: "blank", in: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.0", "1.10.0", -1},
		{"1.10.0", "1.2.0", 1},
		{"v1.0", "1.0.0", 0},
		{"1.0.0", "1.0", 0},
		{"2", "1.9.9", 1},
		{"1.0.1", "1.0", 1},
		{"", "", 0},
		{"", "0.0.0", 0},
		{"", "0.0.1", -1},
		{"1.a.0", "1.0.0", 0},
		{"1.2.3-beta", "1.2.3", 0},
		{"1.2.4-beta", "1.2.3", 1},
		{" v.2.0 ", "2", 0},
		{"1.99999999999999999999", "1.1", 1},
		{"2026010112345678901234", "1", 1},
		{"1.99999999999999999999", "1.99999999999999999999", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

func TestCompareIsTotalOrder(t *testing.T) {
	versions := []string{"0", "0.1", "0.9.9", "1", "1.0.1", "1.2", "1.10", "1.10.3", "2.0.0", "10"}

	for _, a := range versions {
		assert.Equal(t, 0, Compare(a, a), "reflexive for %s", a)
		for _, b := range versions {
			assert.Equal(t, -Compare(b, a), Compare(a, b), "antisymmetric for %s, %s", a, b)
			for _, c := range versions {
				if Compare(a, b) <= 0 && Compare(b, c) <= 0 {
					assert.LessOrEqual(t, Compare(a, c), 0, "transitive for %s <= %s <= %s", a, b, c)
				}
			}
		}
	}
}

func TestLess(t *testing.T) {
	assert.True(t, Less("1.2.0", "1.10.0"))
	assert.False(t, Less("1.0", "v1.0.0"))
	assert.False(t, Less("2.0", "1.0"))
}
