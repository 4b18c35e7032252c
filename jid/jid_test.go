package jid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		input   string
		want    JID
		wantErr bool
	}{
		{input: "example.test", want: JID{Domain: "example.test"}},
		{input: "foo@example.test", want: JID{Local: "foo", Domain: "example.test"}},
		{
			input: "foo@example.test/balcony",
			want:  JID{Local: "foo", Domain: "example.test", Resource: "balcony"},
		},
		{
			// resourceparts may contain @ and /
			input: "example.test/foo@bar/baz",
			want:  JID{Domain: "example.test", Resource: "foo@bar/baz"},
		},
		{input: "", wantErr: true},
		{input: "@example.test", wantErr: true},
		{input: "foo@", wantErr: true},
		{input: "foo@example.test/", wantErr: true},
		{input: "foo bar@example.test", wantErr: true},
		{input: "foo@" + strings.Repeat("d", 1024), wantErr: true},
	} {
		t.Run(tc.input, func(t *testing.T) {
			ck := assert.New(t)
			got, err := Parse(tc.input)
			if tc.wantErr {
				ck.Error(err)
				return
			}
			ck.NoError(err)
			ck.Equal(tc.want, got)
			ck.Equal(tc.input, got.String())
		})
	}
}

func TestMustParse(t *testing.T) {
	assert.Equal(t, JID{Domain: "example.test"}, MustParse("example.test"))
	assert.Panics(t, func() { MustParse("@") })
}

func TestBare(t *testing.T) {
	j := MustParse("foo@example.test/balcony")
	assert.Equal(t, MustParse("foo@example.test"), j.Bare())
	assert.True(t, j.Equal(j))
	assert.False(t, j.Equal(j.Bare()))
	assert.False(t, j.IsZero())
	assert.True(t, JID{}.IsZero())
}
