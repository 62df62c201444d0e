package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdmitAppliesSelectBeforeIgnore(t *testing.T) {
	cc := ClusterConfig{
		Select: []Pattern{GlobPattern("pod*")},
		Ignore: []Pattern{GlobPattern("podsecret")},
	}

	assert.True(t, admit(cc, Item{ResourceType: "pod"}))
	assert.False(t, admit(cc, Item{ResourceType: "podsecret"}))
	assert.False(t, admit(cc, Item{ResourceType: "configmap"}))
}

func TestAdmitWithNoSelectAllowsEverythingExceptIgnored(t *testing.T) {
	cc := ClusterConfig{Ignore: []Pattern{GlobPattern("secret")}}

	assert.True(t, admit(cc, Item{ResourceType: "pod"}))
	assert.False(t, admit(cc, Item{ResourceType: "secret"}))
}

func TestFuncPatternReceivesFullItem(t *testing.T) {
	cc := ClusterConfig{
		Select: []Pattern{FuncPattern(func(i Item) bool {
			return i.Namespace == "prod"
		})},
	}

	assert.True(t, admit(cc, Item{ResourceType: "pod", Namespace: "prod"}))
	assert.False(t, admit(cc, Item{ResourceType: "pod", Namespace: "dev"}))
}
