package launcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavoiems/solo-learn/internal/launcher"
	"github.com/lavoiems/solo-learn/internal/runconfig"
)

func TestParseOverrides(t *testing.T) {
	overrides, err := launcher.ParseOverrides([]string{
		"lr=0.1",
		"gaussian_prob=1.0,0.1",
		"knn_eval",
		"lars=",
	})
	require.NoError(t, err)

	rc := runconfig.New()
	rc.Set("lr", "0.3")
	rc.SetBool("lars", true)
	overrides.Apply(rc)

	assert.Equal(t, "0.1", rc.GetString("lr"))
	values, ok := rc.Get("gaussian_prob")
	require.True(t, ok)
	assert.Equal(t, []string{"1.0", "0.1"}, values)
	assert.True(t, rc.Has("knn_eval"))
	assert.False(t, rc.Has("lars"))
}

func TestParseOverridesRejectsEmptyFlag(t *testing.T) {
	_, err := launcher.ParseOverrides([]string{"=5"})
	assert.Error(t, err)
}

func TestApplyNilOverridesIsNoOp(t *testing.T) {
	rc := runconfig.New()
	rc.Set("lr", "0.3")

	var overrides *launcher.Overrides
	overrides.Apply(rc)

	assert.Equal(t, "0.3", rc.GetString("lr"))
}
