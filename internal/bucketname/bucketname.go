// Package bucketname validates and repairs bucket names against the S3
// naming grammar.
//
// A valid name is 3 to 63 characters of lowercase letters, digits, '.'
// and '-', never contains "..", "-." or ".-", is not shaped like a
// dotted-quad IP address, does not start with the reserved "xn--" prefix
// and does not end with the reserved "-s3alias" suffix.
//
// Validate reports the first rule a candidate breaks, in the order above.
// Normalize deterministically repairs any input into a valid name and is
// idempotent: feeding its output back in returns the same string.
package bucketname

import (
	"regexp"
	"strings"
)

// Violation identifies the first naming rule a candidate name breaks.
type Violation int

const (
	ViolationNone          Violation = iota
	ViolationLength                  // shorter than 3 or longer than 63 characters
	ViolationCharset                 // characters outside lowercase letters, digits, '.' and '-'
	ViolationAdjacentPunct           // contains "..", "-." or ".-"
	ViolationIPAddress               // shaped like a dotted-quad IP address
	ViolationXNPrefix                // reserved "xn--" prefix
	ViolationS3AliasSuffix           // reserved "-s3alias" suffix
)

func (v Violation) String() string {
	switch v {
	case ViolationNone:
		return "none"
	case ViolationLength:
		return "length"
	case ViolationCharset:
		return "charset"
	case ViolationAdjacentPunct:
		return "adjacent_punct"
	case ViolationIPAddress:
		return "ip_address"
	case ViolationXNPrefix:
		return "xn_prefix"
	case ViolationS3AliasSuffix:
		return "s3alias_suffix"
	default:
		return "unknown"
	}
}

const (
	minLength = 3
	maxLength = 63

	reservedPrefix = "xn--"
	reservedSuffix = "-s3alias"

	// repairPrefix pads names that are too short, IP-shaped or reserved.
	repairPrefix = "bucket-"
	// repairSuffix replaces a reserved suffix.
	repairSuffix = "-bucket"
)

var (
	charsetPattern  = regexp.MustCompile(`^[a-z0-9.-]+$`)
	invalidChars    = regexp.MustCompile(`[^a-z0-9.-]`)
	adjacentPunct   = regexp.MustCompile(`\.\.|-\.|\.-`)
	dottedQuadShape = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
)

// Validate checks name against the naming rules and returns the first
// violation found, or ViolationNone. Rules are checked in a fixed priority
// order, so a name breaking several rules always reports the same one.
func Validate(name string) Violation {
	if len(name) < minLength || len(name) > maxLength {
		return ViolationLength
	}
	if !charsetPattern.MatchString(name) {
		return ViolationCharset
	}
	if adjacentPunct.MatchString(name) {
		return ViolationAdjacentPunct
	}
	if dottedQuadShape.MatchString(name) {
		return ViolationIPAddress
	}
	if strings.HasPrefix(name, reservedPrefix) {
		return ViolationXNPrefix
	}
	if strings.HasSuffix(name, reservedSuffix) {
		return ViolationS3AliasSuffix
	}
	return ViolationNone
}

// Normalize repairs name into a valid bucket name. Valid input comes back
// unchanged. The repair pass runs in a fixed order, and reruns when one
// step re-breaks an earlier rule (prefix padding can push the length past
// the limit); every rerun shortens the name, so the loop settles fast.
func Normalize(name string) string {
	for i := 0; i < 4; i++ {
		if Validate(name) == ViolationNone {
			return name
		}
		name = repair(name)
	}
	return name
}

// repair applies one pass of the repair sequence.
func repair(name string) string {
	// Lowercase, then drop every character outside the allowed set.
	name = strings.ToLower(name)
	name = invalidChars.ReplaceAllString(name, "")

	// Collapse forbidden punctuation runs into single hyphens. Replacing
	// can form new forbidden pairs, so repeat until none remain.
	for adjacentPunct.MatchString(name) {
		name = adjacentPunct.ReplaceAllString(name, "-")
	}

	// Clamp the length.
	if len(name) < minLength {
		name = repairPrefix + name
	} else if len(name) > maxLength {
		name = name[:maxLength]
	}

	// Pad away reserved shapes.
	if dottedQuadShape.MatchString(name) {
		name = repairPrefix + name
	}
	if strings.HasPrefix(name, reservedPrefix) {
		name = repairPrefix + name
	}
	if strings.HasSuffix(name, reservedSuffix) {
		name = strings.TrimSuffix(name, reservedSuffix) + repairSuffix
	}

	return name
}
