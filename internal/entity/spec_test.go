package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpec_CloneIsIndependent(t *testing.T) {
	s := Spec{Type: "elasticsearch", Name: "es", Config: map[string]any{"clusterName": "a"}}
	c := s.Clone()
	c.Config["clusterName"] = "b"

	assert.Equal(t, "a", s.Config["clusterName"])
	assert.Equal(t, "b", c.Config["clusterName"])
}

func TestSpec_With(t *testing.T) {
	s := Spec{Type: "t"}
	w := s.With("nodeName", "n-1").With("clusterName", "c")

	assert.Nil(t, s.Config)
	assert.Equal(t, []string{"clusterName", "nodeName"}, w.ConfigKeys())
}
