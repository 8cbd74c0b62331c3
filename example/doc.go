// Package example contains self-contained snippets that demonstrate how to
// wire the token manager and session client together, run the interactive
// consent flow and invoke remote tools.
package example
