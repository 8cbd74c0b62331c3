// Package store persists the cached bearer credential between runs.
package store
