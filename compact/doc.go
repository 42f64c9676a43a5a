// Package compact keeps inline conversation history small by offloading
// oversized tool-result payloads to files. The most recent tool exchanges
// always stay inline; older large payloads are replaced by a file reference
// that resolves back to the byte-identical original.
package compact
