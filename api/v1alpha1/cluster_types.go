package v1alpha1

import (
	"k8s.io/apimachinery/pkg/util/sets"
)

// ClusterSpec 单个集群的覆盖配置
type ClusterSpec struct {
	// +kubebuilder:validation:MinLength=1
	ClusterName string `json:"clusterName"`

	// Replicas 为空时沿用 DomainSpec.Replicas
	// +kubebuilder:validation:Minimum=0
	// +optional
	Replicas *int32 `json:"replicas,omitempty"`
}

// ClusterStatus 观测到的集群状态
type ClusterStatus struct {
	ClusterName     string `json:"clusterName"`
	Replicas        int32  `json:"replicas,omitempty"`
	ReadyReplicas   int32  `json:"readyReplicas,omitempty"`
	MaximumReplicas int32  `json:"maximumReplicas,omitempty"`
}

// ClusterNames returns the sorted union of cluster names from spec and status.
func (d *Domain) ClusterNames() []string {
	names := sets.New[string]()
	for _, c := range d.Spec.Clusters {
		names.Insert(c.ClusterName)
	}
	for _, c := range d.Status.Clusters {
		names.Insert(c.ClusterName)
	}
	names.Delete("")
	return sets.List(names)
}

// HasCluster reports whether the cluster is configured or observed on the domain.
func (d *Domain) HasCluster(clusterName string) bool {
	if d.FindCluster(clusterName) >= 0 {
		return true
	}
	for _, c := range d.Status.Clusters {
		if c.ClusterName == clusterName {
			return true
		}
	}
	return false
}
