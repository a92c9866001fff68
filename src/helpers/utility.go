// Package helpers holds small cross-package utilities, kept deliberately
// thin: anything domain-specific belongs in the package that uses it.
package helpers

import "github.com/google/uuid"

// GenerateUUID returns a fresh random UUID as a string. Used to tag a Tree
// instance so its log lines can be told apart from other instances opened
// in the same process.
func GenerateUUID() string {
	return uuid.New().String()
}
