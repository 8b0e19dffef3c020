// Package codec encodes and decodes object graphs as JSON using the metadata
// cache, so Go types and module types round-trip the same way.
//
// Encoding walks a value up to a maximum depth (DefaultMaxDepth unless
// WithMaxDepth is given). Exceeding it is an error, which also stops cyclic
// graphs. Objects are written member by member in metadata order; maps are
// written with sorted keys.
//
// Decoding reads JSON with gjson. A leaf is assigned as-is when its decoded
// representation (string, int, int64, float64 or bool) is assignable to the
// target. Otherwise the codec tries, in order:
//
//  1. a custom importer registered for the (source, target) pair
//  2. a base importer for the pair (time.Time, time.Duration, []byte)
//  3. enum conversion for named integer targets
//  4. implicit conversion: encoding.TextUnmarshaler, a conversion added with
//     RegisterImplicit, or a same-kind Go conversion
//  5. range-checked numeric coercion
//
// and fails with an error naming the value, its source type and the target.
//
// Unknown object keys go to a `bridge:",rest"` map when the target has one,
// are skipped with WithSkipUnknown, and fail otherwise. Members naming a
// module type are created through the TypeSource given with WithTypes.
package codec
