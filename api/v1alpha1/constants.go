package v1alpha1

const (
	LabelDomainUID = "weblogic.guardian.io/domainUID"
	LabelManaged   = "weblogic.guardian.io/managed"

	// ResourceDomains 用于 SubjectAccessReview 的资源名
	ResourceDomains = "domains"
)
