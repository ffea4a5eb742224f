// Package types defines the configuration, content item representation,
// storage interfaces and standard errors shared by the eggcms engine and its
// callers.
package types
