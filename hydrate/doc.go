// Package hydrate applies field descriptors to freshly constructed instances.
//
// A Descriptor names a member, declares a type tag and carries its payload in
// one of three places: a 16-byte little-endian scalar buffer, an external
// reference, or a list of element descriptors. Known tags (bool, int32,
// int64, number32, number64, text, vector2/3/4, color, and their System.* and
// UnityEngine.* aliases) decode from the scalar buffer. Any other tag is a
// reference: a Referent is forced first and its instance assigned, and an
// enum member without a reference reads the first four bytes.
//
// Hydration is best effort per field. A descriptor whose member is missing is
// skipped, and a field that fails to decode is logged and left at its default
// while the rest are still applied.
//
// Descriptors are persisted as YAML records with the scalar buffer in hex.
package hydrate
