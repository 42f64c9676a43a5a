// Package topic tracks whether a conversation has drifted onto a side
// topic. A per-session state machine distinguishes the MAIN thread from a
// TEMP excursion; each incoming query is scored against the main and temp
// topic references and the resulting action adapts retrieval scope.
package topic
