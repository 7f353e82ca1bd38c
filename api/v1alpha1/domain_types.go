package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// DomainSpec：期望状态
type DomainSpec struct {
	// DomainUID 可选：为空时使用 metadata.name
	// +kubebuilder:validation:MaxLength=45
	DomainUID string `json:"domainUID,omitempty"`

	// Image 应用镜像
	Image string `json:"image,omitempty"`

	// Replicas 默认副本数（集群未单独设置时使用）
	// +kubebuilder:validation:Minimum=0
	Replicas *int32 `json:"replicas,omitempty"`

	// IntrospectVersion 变化时触发一次 introspection
	IntrospectVersion string `json:"introspectVersion,omitempty"`

	// RestartVersion 变化时触发滚动重启
	RestartVersion string `json:"restartVersion,omitempty"`

	// Clusters 按集群覆盖副本数
	Clusters []ClusterSpec `json:"clusters,omitempty"`
}

// DomainStatus：operator 回写的观测状态
type DomainStatus struct {
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`

	// Clusters 最近一次 introspection 发现的集群拓扑
	Clusters []ClusterStatus `json:"clusters,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:resource:scope=Namespaced,shortName=dom
// +kubebuilder:subresource:status
type Domain struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   DomainSpec   `json:"spec,omitempty"`
	Status DomainStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true
type DomainList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Domain `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Domain{}, &DomainList{})
}

// GetDomainUID returns spec.domainUID, or the object name when it is not set.
func (d *Domain) GetDomainUID() string {
	if d.Spec.DomainUID != "" {
		return d.Spec.DomainUID
	}
	return d.Name
}

// FindCluster returns the index of the named entry in spec.clusters, or -1.
func (d *Domain) FindCluster(clusterName string) int {
	for i := range d.Spec.Clusters {
		if d.Spec.Clusters[i].ClusterName == clusterName {
			return i
		}
	}
	return -1
}

// GetReplicaCount is the replica count in effect for a cluster: its override
// when one is set, otherwise the domain default (0 when unset).
func (d *Domain) GetReplicaCount(clusterName string) int {
	if i := d.FindCluster(clusterName); i >= 0 && d.Spec.Clusters[i].Replicas != nil {
		return int(*d.Spec.Clusters[i].Replicas)
	}
	if d.Spec.Replicas != nil {
		return int(*d.Spec.Replicas)
	}
	return 0
}

// HasObservedTopology reports whether introspection has recorded any clusters.
func (d *Domain) HasObservedTopology() bool {
	return len(d.Status.Clusters) > 0
}
