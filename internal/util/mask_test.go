package util

import "testing"

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                    "",
		" Ana@Example.com ":   "a…@e….com",
		"x@y.io":              "x@y.io",
		"abc":                 "***",
		"no-at-sign":          "n…n",
		"john.doe@mail.co.uk": "j…@m….co.uk",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
