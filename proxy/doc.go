// Package proxy attaches bridged behaviors to host nodes.
//
// A Proxy stands in for one behavior on one node. It is created Unattached
// with a logical type name (or a handle) and its field descriptors, and is
// initialized on its first lifecycle call or when its batch closes:
//
//	Unattached -> Initializing -> Ready
//	                           -> Failed
//
// Initialization resolves the type, constructs the instance, binds it to the
// node and hydrates its fields. A proxy that fails is inert; the reason is
// logged and kept in Err. Hydration runs at most once.
//
// The Attacher owns every proxy. BeginBatch and EndBatch bracket bulk
// attachment: proxies attached while a batch is open are initialized in
// attach order when the outermost batch closes, and a descriptor that
// references another proxy forces that proxy first, so references between
// proxies of one batch resolve whatever their order. A reference back to a
// proxy that is still initializing fails that one field with KindCycle.
//
// Proxies are not safe for concurrent use. All calls are expected on the
// host's update goroutine.
package proxy
