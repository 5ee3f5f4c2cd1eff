package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    Locator
		wantErr bool
	}{
		{name: "tcp with host", in: "tcp/127.0.0.1:7447", want: Locator{Proto: "tcp", Address: "127.0.0.1:7447"}},
		{name: "tcp wildcard host", in: "tcp/:7447", want: Locator{Proto: "tcp", Address: ":7447"}},
		{name: "ipv6 host", in: "tcp/[::1]:7447", want: Locator{Proto: "tcp", Address: "[::1]:7447"}},
		{name: "missing separator", in: "tcp127.0.0.1:7447", wantErr: true},
		{name: "empty proto", in: "/127.0.0.1:7447", wantErr: true},
		{name: "empty address", in: "tcp/", wantErr: true},
		{name: "missing port", in: "tcp/127.0.0.1", wantErr: true},
		{name: "non numeric port", in: "tcp/127.0.0.1:http", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidLocator)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLocatorStringRoundTrip(t *testing.T) {
	l, err := Parse("tcp/127.0.0.1:7447")
	require.NoError(t, err)
	assert.Equal(t, "tcp/127.0.0.1:7447", l.String())
}
