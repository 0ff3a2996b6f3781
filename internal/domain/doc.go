// Package domain holds the core types shared across services and
// repositories. Types here carry no behavior beyond small helpers and
// have no dependencies outside the standard library.
package domain
