// Package treefs routes path-based FUSE operations onto a tree of [Node]
// implementations.
//
// The kernel protocol hands every callback an absolute path. The
// [Dispatcher] splits that path into segments, walks the node tree from its
// root, and invokes the matching capability method on the node it lands on,
// so node implementations never deal with paths, only with their own verbs
// and their direct children.
package treefs
