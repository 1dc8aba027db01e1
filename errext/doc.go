// Package errext contains extensions for normal Go errors that are used in smresolve.
package errext
