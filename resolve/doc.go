// Package resolve maps logical type names to instantiation strategies.
//
// A Resolver runs in one of two modes chosen at startup. In module mode a name
// is looked up in the live module domain; in native mode it is looked up in a
// single NativeTable of registered Go types. Either way the result is a
// Handle whose Domain discriminant tells the Factory how to build an
// instance, so callers never branch on where a type came from.
//
// Module types that wrap a native type ("wraps" in the manifest) resolve to a
// wrapper Handle. They carry the module metadata but are constructed as the
// wrapped Go type.
//
// Handles from a module domain carry its generation. Once the domain is
// closed or replaced, Resolve rejects them as stale.
package resolve
