package domain

// VirtualChannel is the channel name given to records of virtual packages.
const VirtualChannel = "@virtual"

// VirtualPackage describes a capability of the host system ("__glibc 2.35").
type VirtualPackage struct {
	Name    PackageName
	Version Version
	Build   string
}

// Record converts the virtual package into a record the solver can select.
func (v VirtualPackage) Record() *PackageRecord {
	build := v.Build
	if build == "" {
		build = "0"
	}
	return &PackageRecord{
		Name:    v.Name,
		Version: v.Version,
		Build:   build,
		Channel: VirtualChannel,
	}
}

// String returns "name=version=build".
func (v VirtualPackage) String() string {
	build := v.Build
	if build == "" {
		build = "0"
	}
	return v.Name.String() + "=" + v.Version.String() + "=" + build
}
