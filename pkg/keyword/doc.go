// Package keyword defines keywords, the named units of automation a plan
// refers to, and the Registry that resolves them by name.
//
// Keywords are registered explicitly, either as a Keyword value with
// hand-written param specs or through Typed, which derives the specs from
// struct tags once at registration time. After loading, the registry is
// frozen and becomes read-only.
package keyword
