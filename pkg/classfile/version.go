package classfile

import "fmt"

// Version is a class file major version.
type Version uint16

// Known major versions.
const (
	Java1_1 Version = 45 + iota
	Java1_2
	Java1_3
	Java1_4
	Java5
	Java6
	Java7
	Java8
	Java9
	Java10
	Java11
	Java12
	Java13
	Java14
	Java15
	Java16
	Java17
	Java18
	Java19
	Java20
	Java21
	Java22
	Java23
	Java24
	Java25
)

// Known reports whether v is one of the enumerated versions.
func (v Version) Known() bool {
	return v >= Java1_1 && v <= Java25
}

// String returns the platform release for the version, e.g. "Java 17".
func (v Version) String() string {
	switch {
	case !v.Known():
		return fmt.Sprintf("unknown(%d)", uint16(v))
	case v <= Java1_4:
		return fmt.Sprintf("Java 1.%d", v-Java1_1+1)
	default:
		return fmt.Sprintf("Java %d", v-Java5+5)
	}
}
