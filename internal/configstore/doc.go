// Package configstore persists discovered devices into the YAML config
// document that the host automation platform reads.
//
// The document stays hand-editable: edits happen on the yaml.Node tree
// so user comments and untouched entries keep their exact formatting,
// re-discovering a known address is a no-op, and every write replaces
// the file atomically.
package configstore
