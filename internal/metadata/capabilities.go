package metadata

var typeCapabilityPrefixes = []string{
	"edit_",
	"edit_others_",
	"publish_",
	"read_private_",
	"delete_",
	"delete_private_",
	"delete_published_",
	"delete_others_",
	"edit_private_",
	"edit_published_",
}

// TypeCapabilities returns the capabilities a registered type introduces,
// e.g. edit_people, publish_people.
func TypeCapabilities(plural string) []string {
	caps := make([]string, len(typeCapabilityPrefixes))
	for i, p := range typeCapabilityPrefixes {
		caps[i] = p + plural
	}
	return caps
}

// EditCapability is the capability checked before saving fields of a type.
func EditCapability(plural string) string {
	return "edit_" + plural
}
