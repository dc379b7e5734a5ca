// Package traverse holds the expansion rules shared by every walk over the
// transfer graph: the live crawl frontier of the tracker and the
// persisted-edge walks of the reporter and the marker.
//
// A Policy answers three questions about a candidate node: is it beyond
// the depth limit, should it be excluded, and has it been visited already.
// Walker runs a recursive walk with bounded fan-out per node.
package traverse
