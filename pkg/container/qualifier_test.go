package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualifierSetAdd(t *testing.T) {
	s := NewQualifierSet(Marker("Fast"), Named("a"), Marker("Fast"), Qualifier{Kind: "Region", Value: "eu"})
	assert.Equal(t, []Qualifier{Marker("Fast"), Named("a"), {Kind: "Region", Value: "eu"}}, s.Slice())

	s.Add(Named("b"))
	name, ok := s.Named()
	require.True(t, ok)
	assert.Equal(t, "b", name)
	assert.Equal(t, 3, s.Len(), "Named replaces Named in place")
	assert.Equal(t, Named("b"), s.Slice()[1])
}

func TestQualifierSetContainsAll(t *testing.T) {
	bean := NewQualifierSet(Named("stripe"), Marker("Fast"), Qualifier{Kind: "Region", Value: "eu"})

	assert.True(t, bean.ContainsAll(QualifierSet{}))
	assert.True(t, bean.ContainsAll(NewQualifierSet(Marker("Fast"))))
	assert.True(t, bean.ContainsAll(NewQualifierSet(Qualifier{Kind: "Region", Value: "eu"}, Named("stripe"))))
	assert.False(t, bean.ContainsAll(NewQualifierSet(Qualifier{Kind: "Region", Value: "us"})))
	assert.False(t, bean.ContainsAll(NewQualifierSet(Marker("Fast"), Marker("Cheap"))))
}

func TestQualifierSetClone(t *testing.T) {
	s := NewQualifierSet(Marker("Fast"))
	c := s.Clone()
	c.Add(Marker("Cheap"))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, c.Len())
}

func TestQualifierString(t *testing.T) {
	assert.Equal(t, "@Named(x)", Named("x").String())
	assert.Equal(t, "@Fast", Marker("Fast").String())
	assert.Equal(t, "[@Named(x) @Fast]", NewQualifierSet(Named("x"), Marker("Fast")).String())
}

func TestParseQualifierTag(t *testing.T) {
	tests := []struct {
		tag     string
		want    []Qualifier
		wantErr bool
	}{
		{tag: "", want: []Qualifier{}},
		{tag: "Named=primary", want: []Qualifier{Named("primary")}},
		{tag: "name=primary", want: []Qualifier{Named("primary")}},
		{tag: " named = primary ", want: []Qualifier{Named("primary")}},
		{tag: "Fast", want: []Qualifier{Marker("Fast")}},
		{tag: "Region=eu,Fast", want: []Qualifier{{Kind: "Region", Value: "eu"}, Marker("Fast")}},
		{tag: "Named=a,Named=a", want: []Qualifier{Named("a")}},
		{tag: "Named", wantErr: true},
		{tag: "Named=", wantErr: true},
		{tag: "Fast,", wantErr: true},
		{tag: "=eu", wantErr: true},
		{tag: "Named=a,Named=b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := parseQualifierTag(tt.tag)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "malformed inject tag")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Slice())
		})
	}
}
