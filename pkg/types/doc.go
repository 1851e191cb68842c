// Package types defines the Entity model, kind schemas, class registry,
// Store interface, and standard errors for the hearth object manager.
package types
