package main

import "testing"

func TestWantsBackgroundWatch_RequiresBothTokens(t *testing.T) {
	cases := []struct {
		args []string
		want bool
	}{
		{[]string{"watch", "--background"}, true},
		{[]string{"watch"}, false},
		{[]string{"--background"}, false},
		{[]string{"learn", "--json-dir", "./captures"}, false},
		{[]string{"watch", "--metrics-addr", ":9090", "--background"}, true},
	}

	for _, c := range cases {
		if got := wantsBackgroundWatch(c.args); got != c.want {
			t.Errorf("wantsBackgroundWatch(%v) = %v, want %v", c.args, got, c.want)
		}
	}
}
