package stream

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Version is a stream protocol version pair.
type Version struct {
	Major int
	Minor int
}

// DefaultVersion is the version assumed for stream headers carrying no
// version attribute, per RFC6120 s4.7.5.
var DefaultVersion = Version{0, 9}

// ParseVersion returns the Version for a major.minor attribute value.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Version{}, errors.Errorf("version %q is not of the form major.minor", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Version{}, errors.Wrapf(err, "version %q", s)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return Version{}, errors.Wrapf(err, "version %q", s)
	}
	if major < 0 || minor < 0 {
		return Version{}, errors.Errorf("version %q is negative", s)
	}
	return Version{Major: major, Minor: minor}, nil
}

func (v Version) String() string {
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// IsZero reports whether the Version is the zero value
func (v Version) IsZero() bool { return v == Version{} }
