package k8sdriver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic/fake"

	"github.com/evalgo-org/objectdb/inventory"
)

func deploymentGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "deployments"}
}

func newFakeDeployment(namespace, name string, replicas int64) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata": map[string]any{
			"name":      name,
			"namespace": namespace,
			"uid":       "uid-" + name,
			"labels":    map[string]any{"app": name},
		},
		"spec": map[string]any{
			"replicas": replicas,
		},
	}}
}

func TestDiscoverListsConfiguredResourcesAsItems(t *testing.T) {
	scheme := runtime.NewScheme()
	listKinds := map[schema.GroupVersionResource]string{
		deploymentGVR(): "DeploymentList",
	}
	client := fake.NewSimpleDynamicClientWithCustomListKinds(scheme, listKinds,
		newFakeDeployment("default", "web", 3))

	driver := New(client, []Resource{
		{GVR: deploymentGVR(), Kind: "Deployment", Namespace: true},
	})

	items, errs := driver.Discover(context.Background(), "c1")

	var collected []inventory.Item
	for item := range items {
		collected = append(collected, item)
	}
	require.NoError(t, <-errs)

	require.Len(t, collected, 1)
	assert.Equal(t, "c1", collected[0].ClusterID)
	assert.Equal(t, "deployments", collected[0].ResourceType)
	assert.Equal(t, "default", collected[0].Namespace)
	assert.Equal(t, "web", collected[0].Name)
	assert.Equal(t, int64(3), collected[0].Configuration["replicas"])
}
