package backend

import (
	"encoding/json"
	"fmt"

	"gomodules.xyz/jsonpatch/v2"

	weblogicv1alpha1 "github.com/CATDOGME/domain-admin/api/v1alpha1"
)

const (
	opAdd     = "add"
	opReplace = "replace"
)

// patchBuilder collects an ordered JSON patch against one observed Domain.
// The first operation pins metadata.resourceVersion to the observed value so
// the API server rejects the patch with a Conflict if the Domain moved on.
type patchBuilder struct {
	ops []jsonpatch.Operation
}

func newPatchBuilder(observed *weblogicv1alpha1.Domain) *patchBuilder {
	b := &patchBuilder{}
	if rv := observed.ResourceVersion; rv != "" {
		b.ops = append(b.ops, jsonpatch.NewOperation(opReplace, "/metadata/resourceVersion", rv))
	}
	return b
}

// set adds path when it is absent on the observed object and replaces it otherwise.
func (b *patchBuilder) set(path string, present bool, value any) *patchBuilder {
	op := opAdd
	if present {
		op = opReplace
	}
	b.ops = append(b.ops, jsonpatch.NewOperation(op, path, value))
	return b
}

func (b *patchBuilder) Operations() []jsonpatch.Operation {
	return b.ops
}

func (b *patchBuilder) Build() ([]byte, error) {
	data, err := json.Marshal(b.ops)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}
	return data, nil
}

func introspectVersionPatch(d *weblogicv1alpha1.Domain) *patchBuilder {
	current := d.Spec.IntrospectVersion
	return newPatchBuilder(d).set("/spec/introspectVersion", current != "", NextVersion(current))
}

func restartVersionPatch(d *weblogicv1alpha1.Domain) *patchBuilder {
	current := d.Spec.RestartVersion
	return newPatchBuilder(d).set("/spec/restartVersion", current != "", NextVersion(current))
}

// replicasPatch sets the replica override of clusterName, creating the
// override, the cluster entry or the clusters list as needed.
func replicasPatch(d *weblogicv1alpha1.Domain, clusterName string, replicas int32) *patchBuilder {
	b := newPatchBuilder(d)
	if i := d.FindCluster(clusterName); i >= 0 {
		path := fmt.Sprintf("/spec/clusters/%d/replicas", i)
		return b.set(path, d.Spec.Clusters[i].Replicas != nil, replicas)
	}
	entry := weblogicv1alpha1.ClusterSpec{ClusterName: clusterName, Replicas: &replicas}
	if len(d.Spec.Clusters) > 0 {
		return b.set("/spec/clusters/-", false, entry)
	}
	return b.set("/spec/clusters", false, []weblogicv1alpha1.ClusterSpec{entry})
}
